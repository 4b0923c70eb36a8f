package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marcus/taskpilot/internal/config"
	"github.com/marcus/taskpilot/internal/db"
	"github.com/marcus/taskpilot/internal/recommend"
	"github.com/marcus/taskpilot/internal/search"
	"github.com/marcus/taskpilot/internal/server"
	"github.com/marcus/taskpilot/internal/stale"
	"github.com/marcus/taskpilot/internal/tasks"
	"github.com/marcus/taskpilot/internal/tasks/filestore"
)

// writeConfig writes a config using the file backend and no oracle, plus any
// extra YAML, and returns its path.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	content := fmt.Sprintf(`store:
  backend: file
  path: %s
oracle:
  provider: none
logging:
  path: %s
  level: debug
%s`, filepath.Join(dir, "data"), filepath.Join(dir, "logs"), extra)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// resetFlags restores every flag to its default; cobra keeps values between
// Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, cfgPath, "", args...)
}

func executeWithInput(t *testing.T, cfgPath, input string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func listTasks(t *testing.T, cfgPath string, args ...string) []tasks.Task {
	t.Helper()
	out, err := execute(t, cfgPath, append([]string{"task", "list", "--json"}, args...)...)
	if err != nil {
		t.Fatalf("task list: %v\n%s", err, out)
	}
	var list []tasks.Task
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decoding task list: %v\n%s", err, out)
	}
	return list
}

func TestTaskLifecycle(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")

	out, err := execute(t, cfg, "task", "add", "Write", "report", "-p", "high", "-c", "work", "-t", "q3", "-t", "docs", "-d", "numbers first")
	if err != nil {
		t.Fatalf("task add: %v", err)
	}
	if !strings.Contains(out, "Created") {
		t.Errorf("add output = %q", out)
	}

	list := listTasks(t, cfg)
	if len(list) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list))
	}
	task := list[0]
	if task.Title != "Write report" || task.Priority != tasks.PriorityHigh || task.Category != tasks.CategoryWork {
		t.Errorf("task = %+v", task)
	}
	if strings.Join(task.Tags, ",") != "q3,docs" || task.Description != "numbers first" {
		t.Errorf("tags/description = %v / %q", task.Tags, task.Description)
	}

	if _, err := execute(t, cfg, "task", "update", task.ID, "--title", "Write final report"); err != nil {
		t.Fatalf("task update: %v", err)
	}
	list = listTasks(t, cfg)
	if list[0].Title != "Write final report" || list[0].Priority != tasks.PriorityHigh {
		t.Errorf("after update = %+v", list[0])
	}
	if strings.Join(list[0].Tags, ",") != "q3,docs" {
		t.Errorf("update without -t changed tags to %v", list[0].Tags)
	}

	out, err = execute(t, cfg, "task", "show", shortID(task.ID))
	if err != nil {
		t.Fatalf("task show by prefix: %v", err)
	}
	if !strings.Contains(out, "Write final report") || !strings.Contains(out, task.ID) {
		t.Errorf("show output missing fields:\n%s", out)
	}

	out, err = execute(t, cfg, "task", "done", task.ID)
	if err != nil {
		t.Fatalf("task done: %v", err)
	}
	if !strings.Contains(out, "Completed") {
		t.Errorf("done output = %q", out)
	}
	if open := listTasks(t, cfg, "--open"); len(open) != 0 {
		t.Errorf("expected no open tasks, got %d", len(open))
	}
	if done := listTasks(t, cfg, "--completed"); len(done) != 1 || done[0].CompletedAt == nil {
		t.Errorf("completed list = %+v", done)
	}

	out, _ = execute(t, cfg, "task", "done", task.ID)
	if !strings.Contains(out, "Reopened") {
		t.Errorf("second done output = %q", out)
	}

	if _, err := execute(t, cfg, "task", "rm", task.ID); err != nil {
		t.Fatalf("task rm: %v", err)
	}
	out, _ = execute(t, cfg, "task", "list")
	if !strings.Contains(out, "No tasks match") {
		t.Errorf("list after rm = %q", out)
	}
}

func TestTaskAddValidation(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")

	tests := []struct {
		name    string
		args    []string
		wantErr string
		wantIs  error
	}{
		{"bad priority", []string{"task", "add", "x", "-p", "asap"}, "unknown priority", nil},
		{"bad category", []string{"task", "add", "x", "-c", "errands"}, "unknown category", nil},
		{"title too long", []string{"task", "add", strings.Repeat("x", tasks.MaxTitleLen+1)}, "", tasks.ErrInvalidInput},
		{"missing title", []string{"task", "add"}, "requires at least 1 arg", nil},
		{"unknown task", []string{"task", "done", "nope-nope"}, "", tasks.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, cfg, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func TestExportImport(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			src := writeConfig(t, t.TempDir(), "")
			for _, title := range []string{"Buy milk", "Call mom"} {
				if _, err := execute(t, src, "task", "add", title, "-c", "personal"); err != nil {
					t.Fatal(err)
				}
			}
			list := listTasks(t, src)
			if _, err := execute(t, src, "task", "done", list[0].ID); err != nil {
				t.Fatal(err)
			}

			file := filepath.Join(t.TempDir(), "tasks."+format)
			out, err := execute(t, src, "task", "export", "--format", format, "-o", file)
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if !strings.Contains(out, "Exported 2 tasks") {
				t.Errorf("export output = %q", out)
			}

			dst := writeConfig(t, t.TempDir(), "")
			out, err = execute(t, dst, "task", "import", file)
			if err != nil {
				t.Fatalf("import: %v", err)
			}
			if !strings.Contains(out, "Imported 2 of 2 tasks") {
				t.Errorf("import output = %q", out)
			}

			imported := listTasks(t, dst)
			var titles []string
			completed := 0
			for _, it := range imported {
				titles = append(titles, it.Title)
				if it.Completed {
					completed++
				}
				if it.Category != tasks.CategoryPersonal {
					t.Errorf("category = %q, want personal", it.Category)
				}
				for _, orig := range list {
					if orig.ID == it.ID {
						t.Errorf("import kept id %q", it.ID)
					}
				}
			}
			sort.Strings(titles)
			if strings.Join(titles, ",") != "Buy milk,Call mom" {
				t.Errorf("titles = %v", titles)
			}
			if completed != 1 {
				t.Errorf("completed = %d, want 1", completed)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"tasks.yaml", "yaml"},
		{"tasks.YML", "yaml"},
		{"tasks.json", "json"},
		{"tasks", "json"},
	}
	for _, tt := range tests {
		if got := formatFromPath(tt.path); got != tt.want {
			t.Errorf("formatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	if _, err := decodeTasks([]byte("[]"), "toml"); err == nil {
		t.Error("decodeTasks with unknown format: want error")
	}
	if err := encodeTasks(&bytes.Buffer{}, "csv", nil); err == nil {
		t.Error("encodeTasks with unknown format: want error")
	}
}

func TestAICommandsRequireOracle(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	for _, args := range [][]string{
		{"recommend"},
		{"stale"},
		{"ai", "generate", "run a marathon"},
		{"ai", "classify", "Buy milk"},
	} {
		_, err := execute(t, cfg, args...)
		if err == nil || !strings.Contains(err.Error(), "no oracle configured") {
			t.Errorf("%v: error = %v, want no oracle configured", args, err)
		}
	}
}

func TestSearchRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SEARCH_API_KEY", "")
	t.Setenv("GOOGLE_SEARCH_ENGINE_ID", "")
	cfg := writeConfig(t, t.TempDir(), "")
	if _, err := execute(t, cfg, "search", "Buy milk"); !errors.Is(err, search.ErrNotConfigured) {
		t.Errorf("search error = %v, want ErrNotConfigured", err)
	}
}

func TestStaleHistory(t *testing.T) {
	dir := t.TempDir()
	fileCfg := writeConfig(t, dir, "")
	if _, err := execute(t, fileCfg, "stale", "--history", "5"); err == nil {
		t.Error("history with the file backend: want error")
	}

	dbPath := filepath.Join(dir, "tp.db")
	sqlCfg := filepath.Join(dir, "sqlite.yaml")
	content := fmt.Sprintf("store:\n  backend: sqlite\n  path: %s\noracle:\n  provider: none\nlogging:\n  path: %s\n", dbPath, filepath.Join(dir, "logs"))
	if err := os.WriteFile(sqlCfg, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	database, err := db.Open(ctx, db.DriverSQLite, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	err = database.RecordStaleCheck(ctx, db.StaleCheck{
		ID:         "c1",
		CheckedAt:  time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		Threshold:  7,
		StaleCount: 2,
		TaskIDs:    []string{"a", "b"},
		Message:    "Two tasks need a nudge.",
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = database.Close()

	out, err := execute(t, sqlCfg, "stale", "--history", "5")
	if err != nil {
		t.Fatalf("stale --history: %v", err)
	}
	if !strings.Contains(out, "Two tasks need a nudge.") || !strings.Contains(out, "7d") {
		t.Errorf("history output = %q", out)
	}
}

func TestTokenCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "server:\n  jwt_secret: 0123456789abcdef0123456789abcdef\n")

	out, err := execute(t, cfg, "token", "--subject", "phone")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	sub, err := server.ParseToken([]byte("0123456789abcdef0123456789abcdef"), strings.TrimSpace(out), time.Now())
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if sub != "phone" {
		t.Errorf("subject = %q, want phone", sub)
	}

	noSecret := writeConfig(t, t.TempDir(), "")
	if _, err := execute(t, noSecret, "token"); err == nil {
		t.Error("token without secret: want error")
	}
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := writeConfig(t, t.TempDir(), "")

	out, err := execute(t, cfg, "init", "--backend", "sqlite", "--provider", "none")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Created project config") {
		t.Errorf("init output = %q", out)
	}

	written, err := config.LoadFile(filepath.Join(dir, "taskpilot.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if written.Store.Backend != config.BackendSQLite || written.Oracle.Provider != config.ProviderNone {
		t.Errorf("written config = %+v / %+v", written.Store, written.Oracle)
	}

	out, err = executeWithInput(t, cfg, "n\n", "init")
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Errorf("second init output = %q", out)
	}

	if _, err := execute(t, cfg, "init", "--force", "--backend", "mongo"); !errors.Is(err, config.ErrInvalidBackend) {
		t.Errorf("init with bad backend: error = %v, want ErrInvalidBackend", err)
	}
}

func TestDoctor(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "stale:\n  schedule: \"0 9 * * *\"\n")

	out, err := execute(t, cfg, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{
		"[OK] config",
		"[OK] store",
		"todos.json",
		"[WARN] oracle",
		"[WARN] schedule",
		"not recorded with the file backend",
		"[WARN] api.auth",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}

func TestFindTask(t *testing.T) {
	ids := []string{"abcd1234", "abcd9999", "zz"}
	n := 0
	store, err := filestore.Open(t.TempDir(), filestore.WithIDFunc(func() string { n++; return ids[n-1] }))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		if _, err := store.Create(ctx, tasks.Fields{Title: tasks.StringPtr(title)}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		ref       string
		wantTitle string
		wantErr   bool
	}{
		{"abcd1234", "one", false},
		{"abcd1", "one", false},
		{"zz", "three", false},
		{"abcd", "", true},
		{"abc", "", true},
		{"nope", "", true},
	}
	for _, tt := range tests {
		got, err := findTask(ctx, store, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Errorf("findTask(%q): want error, got %q", tt.ref, got.Title)
			}
			continue
		}
		if err != nil {
			t.Errorf("findTask(%q): %v", tt.ref, err)
			continue
		}
		if got.Title != tt.wantTitle {
			t.Errorf("findTask(%q) = %q, want %q", tt.ref, got.Title, tt.wantTitle)
		}
	}
}

func TestPrintRecommendations(t *testing.T) {
	list := []tasks.Task{{ID: "a", Title: "Book venue"}, {ID: "b", Title: "Send invites"}}
	set := &recommend.Set{
		Insights: "Venue first.",
		Recommendations: []recommend.Recommendation{
			{TaskID: "a", Title: "Book venue", Score: 90, Reason: "everything waits on it"},
			{TaskID: "b", Title: "Send invites", Score: 60, BlockedBy: []string{"a"}},
		},
		Dependencies: []recommend.Dependency{{TaskID: "b", DependsOn: []string{"a"}, Reasoning: "need an address"}},
	}

	var buf bytes.Buffer
	printRecommendations(&buf, set, list)
	out := buf.String()
	for _, want := range []string{"Book venue", "everything waits on it", "blocked by Book venue", "Send invites  after  Book venue", "need an address", "Venue first."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printRecommendations(&buf, &recommend.Set{}, nil)
	if !strings.Contains(buf.String(), "Nothing to recommend") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestPrintStaleReport(t *testing.T) {
	var buf bytes.Buffer
	printStaleReport(&buf, &stale.Report{TaskMessages: map[string]string{}}, 7)
	if !strings.Contains(buf.String(), "Nothing stale") {
		t.Errorf("empty report output = %q", buf.String())
	}

	buf.Reset()
	printStaleReport(&buf, &stale.Report{
		StaleTasks:       []stale.Task{{ID: "a", Title: "Clean garage", DaysSinceUpdate: 12}},
		OverallMessage:   "A few things have gone quiet.",
		TaskMessages:     map[string]string{"a": "Start with one shelf."},
		ActionSuggestion: "Set a 10 minute timer.",
	}, 7)
	out := buf.String()
	for _, want := range []string{"12d", "Clean garage", "Start with one shelf.", "Set a 10 minute timer.", "A few things have gone quiet."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestNonInteractiveDisablesColor(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")
	prevProfile := lipgloss.ColorProfile()
	prevInteractive := isInteractive
	t.Cleanup(func() {
		lipgloss.SetColorProfile(prevProfile)
		isInteractive = prevInteractive
	})

	lipgloss.SetColorProfile(termenv.TrueColor)
	isInteractive = func() bool { return false }
	if _, err := execute(t, cfgPath, "task", "list"); err != nil {
		t.Fatalf("task list: %v", err)
	}
	if got := lipgloss.ColorProfile(); got != termenv.Ascii {
		t.Errorf("ColorProfile() = %v, want Ascii", got)
	}
}

func TestRenderMarkdownPlain(t *testing.T) {
	prev := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })
	lipgloss.SetColorProfile(termenv.Ascii)

	var buf bytes.Buffer
	if err := renderMarkdown(&buf, "# Water the plants\n\n1. Fill the can\n"); err != nil {
		t.Fatalf("renderMarkdown: %v", err)
	}
	for _, want := range []string{"Water the plants", "Fill the can"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}
