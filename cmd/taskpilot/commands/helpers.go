package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/config"
	"github.com/marcus/taskpilot/internal/db"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/search"
	"github.com/marcus/taskpilot/internal/tasks"
	"github.com/marcus/taskpilot/internal/tasks/filestore"
	"github.com/marcus/taskpilot/internal/tasks/sqlstore"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// app bundles the dependencies a command needs.
type app struct {
	cfg    *config.Config
	store  tasks.Store
	db     *db.DB // nil for the file backend
	oracle oracle.Oracle
	log    *logging.Logger
}

// loadConfig honours --config, falling back to the global and project files.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// initLogging points the global logger at the configured log directory.
// --verbose mirrors log output to stderr at debug level.
func initLogging(cmd *cobra.Command, cfg *config.Config) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	lc := logging.Config{
		Level:         cfg.Logging.Level,
		Path:          cfg.Logging.Path,
		Format:        cfg.Logging.Format,
		RetentionDays: cfg.Logging.RetentionDays,
		Console:       verbose,
	}
	if verbose {
		lc.Level = "debug"
	}
	return logging.Init(lc)
}

// openApp loads config, logging, the task store and the oracle.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := initLogging(cmd, cfg); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	ctx := cmdContext(cmd)
	a := &app{cfg: cfg, log: logging.Component("cli")}
	a.store, a.db, err = openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	a.oracle, err = oracle.New(ctx, cfg.Oracle)
	if err != nil {
		_ = a.store.Close()
		return nil, fmt.Errorf("creating oracle: %w", err)
	}
	return a, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) Close() error {
	return a.store.Close()
}

// openStore builds the task store selected by the backend setting.
// The returned *db.DB is nil for the file backend.
func openStore(ctx context.Context, cfg config.StoreConfig) (tasks.Store, *db.DB, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		s, err := filestore.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening task file: %w", err)
		}
		return s, nil, nil
	case config.BackendSQLite, config.BackendPostgres:
		dsn := cfg.Path
		if cfg.Backend == config.BackendPostgres {
			dsn = cfg.DSN
		}
		database, err := db.Open(ctx, cfg.Backend, dsn)
		if err != nil {
			return nil, nil, err
		}
		s, err := sqlstore.New(database)
		if err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		return s, database, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// newSearchClient returns nil when credentials are missing.
func newSearchClient(cfg config.SearchConfig) *search.Client {
	if !cfg.Configured() {
		return nil
	}
	return search.New(cfg.APIKey, cfg.EngineID,
		search.WithLanguage(cfg.Language),
		search.WithTimeout(cfg.Timeout),
	)
}

// requireOracle fails fast when no provider is set up.
func (a *app) requireOracle() error {
	if !oracle.Configured(a.cfg.Oracle) {
		return fmt.Errorf("no oracle configured: set oracle.provider and an API key (see 'taskpilot doctor')")
	}
	return nil
}

// findTask resolves an id, or a unique id prefix, to a task.
func findTask(ctx context.Context, s tasks.Store, ref string) (tasks.Task, error) {
	if t, err := s.Get(ctx, ref); err == nil {
		return t, nil
	}
	all, err := s.List(ctx, tasks.Filter{})
	if err != nil {
		return tasks.Task{}, err
	}
	var match []tasks.Task
	for _, t := range all {
		if len(ref) >= 4 && len(t.ID) >= len(ref) && t.ID[:len(ref)] == ref {
			match = append(match, t)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return tasks.Task{}, fmt.Errorf("%q: %w", ref, tasks.ErrNotFound)
	default:
		return tasks.Task{}, fmt.Errorf("%q matches %d tasks, use more characters", ref, len(match))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
