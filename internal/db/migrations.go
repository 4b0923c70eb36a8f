package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcus/taskpilot/internal/logging"
)

// Migration represents a single schema change. The SQL must be valid for
// every supported driver.
type Migration struct {
	Version     int
	Description string
	SQL         []string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: tasks",
		SQL:         migration001SQL,
	},
	{
		Version:     2,
		Description: "add stale_checks table for scheduled stale detection runs",
		SQL:         migration002SQL,
	},
}

// Timestamps are stored as fixed-width UTC text so ordering by column works
// identically on both drivers.
var migration001SQL = []string{
	`CREATE TABLE tasks (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT 'other',
    priority     TEXT NOT NULL DEFAULT 'medium',
    completed    BOOLEAN NOT NULL DEFAULT FALSE,
    tags         TEXT NOT NULL DEFAULT '[]',
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL,
    completed_at TEXT
)`,
	`CREATE INDEX idx_tasks_completed ON tasks(completed)`,
	`CREATE INDEX idx_tasks_created ON tasks(created_at)`,
}

var migration002SQL = []string{
	`CREATE TABLE stale_checks (
    id          TEXT PRIMARY KEY,
    checked_at  TEXT NOT NULL,
    threshold   INTEGER NOT NULL,
    stale_count INTEGER NOT NULL,
    task_ids    TEXT NOT NULL DEFAULT '[]',
    message     TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX idx_stale_checks_time ON stale_checks(checked_at)`,
}

// Migrate runs all pending migrations inside transactions.
func (d *DB) Migrate(ctx context.Context) error {
	if d == nil || d.sql == nil {
		return errors.New("db is nil")
	}
	log := logging.Component("db")

	if _, err := d.sql.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at TEXT)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	currentVersion, err := d.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := d.sql.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", migration.Version, err)
		}

		for _, stmt := range migration.SQL {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply migration %d: %w", migration.Version, err)
			}
		}

		if _, err := tx.ExecContext(ctx, d.Rebind(`INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`), migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}

		log.Infof("applied migration %d: %s", migration.Version, migration.Description)
		currentVersion = migration.Version
	}

	return nil
}

// CurrentVersion returns the current schema version (0 if no migrations applied).
func (d *DB) CurrentVersion(ctx context.Context) (int, error) {
	if d == nil || d.sql == nil {
		return 0, errors.New("db is nil")
	}

	row := d.sql.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema_version: %w", err)
	}
	return version, nil
}
