package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPrintLogLine(t *testing.T) {
	ts := time.Date(2026, 6, 1, 9, 30, 15, 0, time.UTC)
	clock := ts.Local().Format("15:04:05")

	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "component and error",
			line: `{"level":"error","time":"2026-06-01T09:30:15Z","component":"api","message":"request failed","error":"boom"}`,
			want: clock + " ERR [api] request failed error=boom\n",
		},
		{
			name: "no component",
			line: `{"level":"info","time":"2026-06-01T09:30:15Z","message":"started"}`,
			want: clock + " INF started\n",
		},
		{
			name: "raw text",
			line: "not json at all",
			want: "not json at all\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printLogLine(&buf, tt.line)
			if buf.String() != tt.want {
				t.Errorf("printLogLine() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLevelTag(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DBG"},
		{"warn", "WRN"},
		{"fatal", "FAT"},
		{"", "???"},
		{"x", "X"},
	}
	for _, tt := range tests {
		if got := levelTag(tt.level); got != tt.want {
			t.Errorf("levelTag(%q) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func writeLogFile(t *testing.T, dir, date string, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, "taskpilot-"+date+".log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTailSpansFiles(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "2026-06-01", "a1", "a2", "a3")
	writeLogFile(t, dir, "2026-06-02", "b1", "b2")

	v := &logViewer{dir: dir}
	files, err := v.files()
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(v.tail(files, 4), ",")
	if got != "a2,a3,b1,b2" {
		t.Errorf("tail() = %q, want a2,a3,b1,b2", got)
	}
}

func TestLogsCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "")
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeLogFile(t, logDir, "2026-06-01", "old line", "middle line")
	writeLogFile(t, logDir, "2026-06-02", "new line")

	out, err := execute(t, cfg, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "middle line\nnew line\n" {
		t.Errorf("logs output = %q", out)
	}

	exported := filepath.Join(t.TempDir(), "all.log")
	out, err = execute(t, cfg, "logs", "--export", exported)
	if err != nil {
		t.Fatalf("logs --export: %v", err)
	}
	if !strings.Contains(out, "Exported 3 log lines") {
		t.Errorf("export output = %q", out)
	}
	data, _ := os.ReadFile(exported)
	if string(data) != "old line\nmiddle line\nnew line\n" {
		t.Errorf("exported = %q", data)
	}
}

func TestLogsCommandNoFiles(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	out, err := execute(t, cfg, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "No log files found.") {
		t.Errorf("logs output = %q", out)
	}
}

func TestLogFilters(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "")
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeLogFile(t, logDir, "2026-06-01",
		`{"level":"debug","time":"2026-06-01T09:00:00Z","component":"api","message":"d1"}`,
		`{"level":"warn","time":"2026-06-01T09:00:01Z","component":"api","message":"w1"}`,
		`{"level":"error","time":"2026-06-01T09:00:02Z","component":"stale","message":"e1"}`,
		"plain text",
	)

	tests := []struct {
		args []string
		want []string
		skip []string
	}{
		{[]string{"--level", "warn"}, []string{"w1", "e1"}, []string{"d1", "plain text"}},
		{[]string{"--component", "api"}, []string{"d1", "w1"}, []string{"e1", "plain text"}},
		{[]string{"--level", "error", "--component", "api"}, nil, []string{"d1", "w1", "e1"}},
		{nil, []string{"d1", "w1", "e1", "plain text"}, nil},
	}
	for _, tt := range tests {
		out, err := execute(t, cfg, append([]string{"logs"}, tt.args...)...)
		if err != nil {
			t.Fatalf("logs %v: %v", tt.args, err)
		}
		for _, w := range tt.want {
			if !strings.Contains(out, w) {
				t.Errorf("logs %v: missing %q in %q", tt.args, w, out)
			}
		}
		for _, s := range tt.skip {
			if strings.Contains(out, s) {
				t.Errorf("logs %v: unexpected %q in %q", tt.args, s, out)
			}
		}
	}

	if _, err := execute(t, cfg, "logs", "--level", "loud"); err == nil {
		t.Error("invalid --level: want error")
	}
}
