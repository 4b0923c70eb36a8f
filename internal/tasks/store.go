package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract shared by the file and SQL backends.
// Implementations return ErrNotFound for unknown ids.
type Store interface {
	List(ctx context.Context, filter Filter) ([]Task, error)
	Get(ctx context.Context, id string) (Task, error)
	Create(ctx context.Context, f Fields) (Task, error)
	Update(ctx context.Context, id string, f Fields) (Task, error)
	Delete(ctx context.Context, id string) (bool, error)
	ToggleComplete(ctx context.Context, id string) (Task, error)
	Close() error
}

// NewID returns a fresh task id.
func NewID() string {
	return uuid.NewString()
}

// Clock abstracts time for stores and tests.
type Clock func() time.Time

// Import creates every task in list through s, preserving titles and
// metadata but assigning new ids. Returns the number created.
func Import(ctx context.Context, s Store, list []Task) (int, error) {
	created := 0
	for _, t := range list {
		f := Fields{
			Title:       StringPtr(t.Title),
			Description: StringPtr(t.Description),
			Tags:        &t.Tags,
		}
		if t.Category != "" {
			c := NormalizeCategory(string(t.Category))
			f.Category = &c
		}
		if t.Priority != "" {
			p := NormalizePriority(string(t.Priority))
			f.Priority = &p
		}
		if t.Completed {
			done := true
			f.Completed = &done
		}
		if err := f.Validate(true); err != nil {
			return created, fmt.Errorf("task %q: %w", t.Title, err)
		}
		if _, err := s.Create(ctx, f); err != nil {
			return created, fmt.Errorf("creating %q: %w", t.Title, err)
		}
		created++
	}
	return created, nil
}
