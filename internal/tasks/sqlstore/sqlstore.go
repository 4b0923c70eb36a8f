// Package sqlstore implements tasks.Store on top of internal/db, for both
// the sqlite and postgres drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/db"
	"github.com/marcus/taskpilot/internal/tasks"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `id, title, description, category, priority, completed, tags, created_at, updated_at, completed_at`

// Store is a tasks.Store backed by a SQL database.
type Store struct {
	db    *db.DB
	now   tasks.Clock
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now tasks.Clock) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides id generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New wraps an open database. The store takes ownership and closes it on Close.
func New(database *db.DB, opts ...Option) (*Store, error) {
	if database == nil || database.SQL() == nil {
		return nil, errors.New("sqlstore: db is nil")
	}
	s := &Store{
		db:    database,
		now:   time.Now,
		newID: tasks.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns tasks matching filter ordered by creation time.
func (s *Store) List(ctx context.Context, filter tasks.Filter) ([]tasks.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, *filter.Completed)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(filter.Priority))
	}

	query := `SELECT ` + selectColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.SQL().QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]tasks.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// Get returns the task with id.
func (s *Store) Get(ctx context.Context, id string) (tasks.Task, error) {
	return getTask(ctx, s.db.SQL(), s.db, id)
}

// Create validates f and inserts a new task.
func (s *Store) Create(ctx context.Context, f tasks.Fields) (tasks.Task, error) {
	if err := f.Validate(true); err != nil {
		return tasks.Task{}, err
	}

	t := tasks.New(s.newID(), f, s.now())
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("encoding tags: %w", err)
	}

	_, err = s.db.SQL().ExecContext(ctx, s.db.Rebind(`INSERT INTO tasks (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.Title, t.Description, string(t.Category), string(t.Priority), t.Completed, string(tags),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), formatTimePtr(t.CompletedAt),
	)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// Update merges f into the task with id inside a transaction.
func (s *Store) Update(ctx context.Context, id string, f tasks.Fields) (tasks.Task, error) {
	if err := f.Validate(false); err != nil {
		return tasks.Task{}, err
	}
	return s.mutate(ctx, id, func(t *tasks.Task, now time.Time) { t.Apply(f, now) })
}

// ToggleComplete flips the completion state of the task with id.
func (s *Store) ToggleComplete(ctx context.Context, id string) (tasks.Task, error) {
	return s.mutate(ctx, id, func(t *tasks.Task, now time.Time) { t.Toggle(now) })
}

// Delete removes the task with id. It reports false when no task matched.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.SQL().ExecContext(ctx, s.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return n > 0, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) mutate(ctx context.Context, id string, fn func(*tasks.Task, time.Time)) (tasks.Task, error) {
	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := getTask(ctx, tx, s.db, id)
	if err != nil {
		return tasks.Task{}, err
	}

	fn(&t, s.now())

	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("encoding tags: %w", err)
	}
	_, err = tx.ExecContext(ctx, s.db.Rebind(`UPDATE tasks SET title = ?, description = ?, category = ?, priority = ?, completed = ?, tags = ?, updated_at = ?, completed_at = ? WHERE id = ?`),
		t.Title, t.Description, string(t.Category), string(t.Priority), t.Completed, string(tags),
		formatTime(t.UpdatedAt), formatTimePtr(t.CompletedAt), t.ID,
	)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return tasks.Task{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getTask(ctx context.Context, q queryer, d *db.DB, id string) (tasks.Task, error) {
	row := q.QueryRowContext(ctx, d.Rebind(`SELECT `+selectColumns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Task{}, tasks.ErrNotFound
	}
	return t, err
}

func scanTask(row scanner) (tasks.Task, error) {
	var (
		t           tasks.Task
		category    string
		priority    string
		tags        string
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &category, &priority, &t.Completed, &tags, &createdAt, &updatedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan task: %w", err)
	}
	t.Category = tasks.Category(category)
	t.Priority = tasks.Priority(priority)

	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return t, fmt.Errorf("decoding tags for %s: %w", t.ID, err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}

	var err error
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return t, fmt.Errorf("parsing created_at for %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return t, fmt.Errorf("parsing updated_at for %s: %w", t.ID, err)
	}
	if completedAt.Valid && completedAt.String != "" {
		at, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return t, fmt.Errorf("parsing completed_at for %s: %w", t.ID, err)
		}
		t.CompletedAt = &at
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

var _ tasks.Store = (*Store)(nil)
