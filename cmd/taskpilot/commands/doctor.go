package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/config"
	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/tasks"
	"github.com/marcus/taskpilot/internal/tasks/filestore"
)

type checkStatus string

const (
	statusOK   checkStatus = "OK"
	statusWarn checkStatus = "WARN"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	name   string
	status checkStatus
	detail string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check taskpilot configuration and environment",
	Long: `Run diagnostics to detect configuration and environment issues.

Checks config, the task store, the oracle, web search, the stale check
schedule and API auth. Use --ping to send a tiny prompt to the oracle.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().Bool("ping", false, "Send a test prompt to the oracle")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ping, _ := cmd.Flags().GetBool("ping")
	out := cmd.OutOrStdout()
	ctx := cmdContext(cmd)

	results := make([]checkResult, 0)
	hasFail := false
	add := func(name string, status checkStatus, detail string) {
		if status == statusFail {
			hasFail = true
		}
		results = append(results, checkResult{name: name, status: status, detail: detail})
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		add("config", statusFail, err.Error())
		printDoctorResults(out, results)
		return fmt.Errorf("config load failed")
	}
	add("config", statusOK, "loaded")

	checkStore(ctx, cfg, add)
	checkOracle(ctx, cfg, ping, add)
	checkSearch(cfg, add)
	checkSchedule(cfg, time.Now(), add)
	checkAuth(cfg, add)
	checkLogDir(cfg, add)

	printDoctorResults(out, results)
	if hasFail {
		return fmt.Errorf("doctor found failures")
	}
	return nil
}

func checkStore(ctx context.Context, cfg *config.Config, add func(string, checkStatus, string)) {
	store, database, err := openStore(ctx, cfg.Store)
	if err != nil {
		add("store", statusFail, err.Error())
		return
	}
	defer store.Close()

	list, err := store.List(ctx, tasks.Filter{})
	if err != nil {
		add("store", statusFail, err.Error())
		return
	}
	open := len(tasks.Incomplete(list))
	add("store", statusOK, fmt.Sprintf("%s backend, %d tasks (%d open)", cfg.Store.Backend, len(list), open))
	if fs, ok := store.(*filestore.Store); ok {
		add("store.path", statusOK, fs.Path())
	}

	if database != nil {
		v, err := database.CurrentVersion(ctx)
		if err != nil {
			add("db.schema", statusWarn, err.Error())
		} else {
			add("db.schema", statusOK, fmt.Sprintf("%s, version %d", database.Driver(), v))
		}
	}
}

func checkOracle(ctx context.Context, cfg *config.Config, ping bool, add func(string, checkStatus, string)) {
	if cfg.Oracle.Provider == config.ProviderNone {
		add("oracle", statusWarn, "disabled; AI features will return errors")
		return
	}
	if !oracle.Configured(cfg.Oracle) {
		add("oracle", statusFail, fmt.Sprintf("%s needs an API key", cfg.Oracle.Provider))
		return
	}

	o, err := oracle.New(ctx, cfg.Oracle)
	if err != nil {
		add("oracle", statusFail, err.Error())
		return
	}
	if cli, ok := o.(*oracle.CLIClient); ok && !cli.Available() {
		add("oracle", statusFail, fmt.Sprintf("%s not found in PATH", cli.Name()))
		return
	}
	detail := cfg.Oracle.Provider
	if cfg.Oracle.Model != "" {
		detail += " (" + cfg.Oracle.Model + ")"
	}
	add("oracle", statusOK, detail)

	if !ping {
		return
	}
	start := time.Now()
	reply, err := oracle.Call(ctx, oracle.WithMaxTokens(o, 16), "Reply with the single word: pong")
	if err != nil {
		add("oracle.ping", statusFail, err.Error())
		return
	}
	add("oracle.ping", statusOK, fmt.Sprintf("%q in %s", truncateDetail(reply, 20), time.Since(start).Truncate(time.Millisecond)))
}

func checkSearch(cfg *config.Config, add func(string, checkStatus, string)) {
	if !cfg.Search.Configured() {
		add("search", statusWarn, "not configured; task context search disabled")
		return
	}
	add("search", statusOK, fmt.Sprintf("%d results, %s", cfg.Search.NumResults, cfg.Search.Language))
}

func checkSchedule(cfg *config.Config, now time.Time, add func(string, checkStatus, string)) {
	if cfg.Stale.Schedule == "" {
		add("schedule", statusWarn, "no stale.schedule; checks run only on demand")
		return
	}
	sched, err := cron.ParseStandard(cfg.Stale.Schedule)
	if err != nil {
		add("schedule", statusFail, err.Error())
		return
	}
	detail := "next stale check " + sched.Next(now).Format(time.RFC1123)
	if cfg.Store.Backend == config.BackendFile {
		add("schedule", statusWarn, detail+"; results are not recorded with the file backend")
		return
	}
	add("schedule", statusOK, detail)
}

func checkAuth(cfg *config.Config, add func(string, checkStatus, string)) {
	switch {
	case cfg.Server.JWTSecret == "":
		add("api.auth", statusWarn, "no server.jwt_secret; the API is open")
	case len(cfg.Server.JWTSecret) < 32:
		add("api.auth", statusWarn, "server.jwt_secret is shorter than 32 bytes")
	default:
		add("api.auth", statusOK, "bearer tokens required")
	}
}

func checkLogDir(cfg *config.Config, add func(string, checkStatus, string)) {
	if cfg.Logging.Path == "" {
		add("logs", statusOK, "stderr")
		return
	}
	if err := os.MkdirAll(cfg.Logging.Path, 0755); err != nil {
		add("logs", statusFail, err.Error())
		return
	}
	add("logs", statusOK, cfg.Logging.Path)
}

func truncateDetail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printDoctorResults(out io.Writer, results []checkResult) {
	fmt.Fprintln(out, "Taskpilot doctor")
	fmt.Fprintln(out, "================")
	for _, result := range results {
		fmt.Fprintf(out, "[%s] %-20s %s\n", result.status, result.name, result.detail)
	}
	fmt.Fprintln(out)
}
