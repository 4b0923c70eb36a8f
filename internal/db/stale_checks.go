package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const checkTimeLayout = "2006-01-02T15:04:05.000000000Z"

// StaleCheck records one scheduled stale-task detection run.
type StaleCheck struct {
	ID         string
	CheckedAt  time.Time
	Threshold  int
	StaleCount int
	TaskIDs    []string
	Message    string
	Error      string
}

// RecordStaleCheck stores a stale check result.
func (d *DB) RecordStaleCheck(ctx context.Context, c StaleCheck) error {
	ids := c.TaskIDs
	if ids == nil {
		ids = []string{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding task ids: %w", err)
	}
	_, err = d.sql.ExecContext(ctx, d.Rebind(`INSERT INTO stale_checks (id, checked_at, threshold, stale_count, task_ids, message, error) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.CheckedAt.UTC().Format(checkTimeLayout), c.Threshold, c.StaleCount, string(encoded), c.Message, c.Error,
	)
	if err != nil {
		return fmt.Errorf("insert stale check: %w", err)
	}
	return nil
}

// StaleChecks returns the most recent n checks, newest first.
func (d *DB) StaleChecks(ctx context.Context, n int) ([]StaleCheck, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := d.sql.QueryContext(ctx, d.Rebind(`SELECT id, checked_at, threshold, stale_count, task_ids, message, error FROM stale_checks ORDER BY checked_at DESC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("query stale checks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StaleCheck
	for rows.Next() {
		var (
			c         StaleCheck
			checkedAt string
			ids       string
		)
		if err := rows.Scan(&c.ID, &checkedAt, &c.Threshold, &c.StaleCount, &ids, &c.Message, &c.Error); err != nil {
			return nil, fmt.Errorf("scan stale check: %w", err)
		}
		if c.CheckedAt, err = time.Parse(checkTimeLayout, checkedAt); err != nil {
			return nil, fmt.Errorf("parsing checked_at: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &c.TaskIDs); err != nil {
			return nil, fmt.Errorf("decoding task ids: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
