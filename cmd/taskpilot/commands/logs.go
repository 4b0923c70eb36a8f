package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View logs",
	Long: `View taskpilot logs.

Shows the most recent entries across the daily log files. Use --follow to
stream new entries, --level and --component to filter, --export to copy
every log line into one file.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntP("tail", "n", 50, "Number of log lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().StringP("export", "e", "", "Export logs to file")
	logsCmd.Flags().String("level", "", "Minimum level to show (debug, info, warn, error)")
	logsCmd.Flags().String("component", "", "Only show entries from this component")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	tail, _ := cmd.Flags().GetInt("tail")
	follow, _ := cmd.Flags().GetBool("follow")
	export, _ := cmd.Flags().GetString("export")
	level, _ := cmd.Flags().GetString("level")
	component, _ := cmd.Flags().GetString("component")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	v := &logViewer{dir: cfg.Logging.Path, out: cmd.OutOrStdout(), component: component, minLevel: zerolog.TraceLevel}
	if level != "" {
		if v.minLevel, err = logging.ParseLevel(level); err != nil {
			return err
		}
	}

	switch {
	case export != "":
		return v.export(export)
	case follow:
		return v.follow(cmd, tail)
	default:
		return v.show(tail)
	}
}

// logEntry is the subset of a JSON log line the viewer prints.
type logEntry struct {
	Level     string    `json:"level"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// logViewer reads the daily log files in dir.
type logViewer struct {
	dir       string
	out       io.Writer
	component string
	minLevel  zerolog.Level
}

func (v *logViewer) filtered() bool {
	return v.component != "" || v.minLevel > zerolog.TraceLevel
}

// keep applies the level and component filters. Lines that are not JSON
// pass only when no filter is set.
func (v *logViewer) keep(line string) bool {
	if !v.filtered() {
		return true
	}
	var e logEntry
	if json.Unmarshal([]byte(line), &e) != nil {
		return false
	}
	if v.component != "" && e.Component != v.component {
		return false
	}
	lvl, err := zerolog.ParseLevel(e.Level)
	return err == nil && lvl >= v.minLevel
}

func (v *logViewer) files() ([]string, error) {
	files, err := logging.ListLogFiles(v.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading log dir: %w", err)
	}
	return files, nil
}

// tail returns the last n kept lines, walking files newest first.
func (v *logViewer) tail(files []string, n int) []string {
	var lines []string
	for _, file := range files {
		if len(lines) >= n {
			break
		}
		var kept []string
		for _, l := range readFileLines(file) {
			if v.keep(l) {
				kept = append(kept, l)
			}
		}
		if remaining := n - len(lines); len(kept) > remaining {
			kept = kept[len(kept)-remaining:]
		}
		lines = append(kept, lines...)
	}
	return lines
}

func (v *logViewer) show(n int) error {
	files, err := v.files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(v.out, "No log files found.")
		return nil
	}
	for _, line := range v.tail(files, n) {
		printLogLine(v.out, line)
	}
	return nil
}

// follow prints the last n lines, then streams writes to today's file until
// the command context ends. A new day's file is picked up when it appears.
func (v *logViewer) follow(cmd *cobra.Command, n int) error {
	if err := v.show(n); err != nil {
		return err
	}
	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(v.dir); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	cur := openTail(todayLogFile(v.dir, time.Now()), true)
	defer func() { cur.close() }()

	fmt.Fprintln(v.out, "--- Following logs (Ctrl+C to exit) ---")

	ctx := cmdContext(cmd)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if today := todayLogFile(v.dir, time.Now()); cur == nil || cur.path != today {
				if name != today {
					continue
				}
				cur.close()
				if cur = openTail(today, false); cur == nil {
					continue
				}
			}
			if event.Has(fsnotify.Write) && name == cur.path {
				for _, line := range cur.readLines() {
					if v.keep(line) {
						printLogLine(v.out, line)
					}
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

func (v *logViewer) export(outFile string) error {
	files, err := v.files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no log files found")
	}

	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	total := 0
	for i := len(files) - 1; i >= 0; i-- {
		for _, line := range readFileLines(files[i]) {
			if !v.keep(line) {
				continue
			}
			_, _ = w.WriteString(line + "\n")
			total++
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", outFile, err)
	}

	fmt.Fprintf(v.out, "Exported %d log lines to %s\n", total, outFile)
	return nil
}

// tailFile reads lines appended to a log file.
type tailFile struct {
	path   string
	file   *os.File
	reader *bufio.Reader
}

// openTail opens path, optionally skipping existing content. It returns nil
// if the file cannot be opened.
func openTail(path string, fromEnd bool) *tailFile {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	if fromEnd {
		_, _ = f.Seek(0, io.SeekEnd)
	}
	return &tailFile{path: path, file: f, reader: bufio.NewReader(f)}
}

func (t *tailFile) readLines() []string {
	var lines []string
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return lines
		}
		lines = append(lines, strings.TrimSuffix(line, "\n"))
	}
}

func (t *tailFile) close() {
	if t != nil && t.file != nil {
		_ = t.file.Close()
	}
}

func todayLogFile(dir string, now time.Time) string {
	return filepath.Join(dir, "taskpilot-"+now.Format("2006-01-02")+".log")
}

func readFileLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func printLogLine(out io.Writer, line string) {
	var e logEntry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		fmt.Fprintln(out, line)
		return
	}

	var sb strings.Builder
	sb.WriteString(e.Time.Local().Format("15:04:05"))
	sb.WriteString(" " + levelTag(e.Level))
	if e.Component != "" {
		sb.WriteString(" [" + e.Component + "]")
	}
	sb.WriteString(" " + e.Message)
	if e.Error != "" {
		sb.WriteString(" error=" + e.Error)
	}
	fmt.Fprintln(out, sb.String())
}

func levelTag(level string) string {
	switch level {
	case "debug":
		return "DBG"
	case "info":
		return "INF"
	case "warn":
		return "WRN"
	case "error":
		return "ERR"
	case "":
		return "???"
	}
	if len(level) > 3 {
		level = level[:3]
	}
	return strings.ToUpper(level)
}
