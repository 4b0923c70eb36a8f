// Package filestore persists tasks as a JSON array in a single file.
// Every mutation rewrites the file atomically via a temp file and rename.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/marcus/taskpilot/internal/tasks"
)

const fileName = "todos.json"

// Store is a tasks.Store backed by a JSON file.
type Store struct {
	mu       sync.RWMutex
	filePath string
	items    []tasks.Task
	now      tasks.Clock
	newID    func() string
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

// DefaultDir returns the default data directory.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "taskpilot")
}

// Open loads the store from dir, creating the directory if needed.
// A missing file is treated as an empty list.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	dir = expandPath(dir)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	s := &Store{
		filePath: filepath.Join(dir, fileName),
		items:    make([]tasks.Task, 0),
		now:      time.Now,
		newID:    tasks.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return err
	}

	var loaded []tasks.Task
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}
	for i := range loaded {
		if loaded[i].Tags == nil {
			loaded[i].Tags = []string{}
		}
	}
	s.items = loaded
	return nil
}

// save must be called with mu held.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tasks: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("writing tasks: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("renaming tasks file: %w", err)
	}
	return nil
}

// List returns the tasks matching filter in insertion order.
func (s *Store) List(_ context.Context, filter tasks.Filter) ([]tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]tasks.Task, 0, len(s.items))
	for _, t := range s.items {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Get returns the task with id.
func (s *Store) Get(_ context.Context, id string) (tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return tasks.Task{}, tasks.ErrNotFound
	}
	return s.items[i], nil
}

// Create validates f and appends a new task.
func (s *Store) Create(_ context.Context, f tasks.Fields) (tasks.Task, error) {
	if err := f.Validate(true); err != nil {
		return tasks.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := tasks.New(s.newID(), f, s.now())
	s.items = append(s.items, t)
	if err := s.save(); err != nil {
		s.items = s.items[:len(s.items)-1]
		return tasks.Task{}, err
	}
	return t, nil
}

// Update merges f into the task with id.
func (s *Store) Update(_ context.Context, id string, f tasks.Fields) (tasks.Task, error) {
	if err := f.Validate(false); err != nil {
		return tasks.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return tasks.Task{}, tasks.ErrNotFound
	}
	prev := s.items[i]
	s.items[i].Apply(f, s.now())
	if err := s.save(); err != nil {
		s.items[i] = prev
		return tasks.Task{}, err
	}
	return s.items[i], nil
}

// Delete removes the task with id. It reports false when no task matched.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	prev := s.items
	next := make([]tasks.Task, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	s.items = next
	if err := s.save(); err != nil {
		s.items = prev
		return false, err
	}
	return true, nil
}

// ToggleComplete flips the completion state of the task with id.
func (s *Store) ToggleComplete(_ context.Context, id string) (tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return tasks.Task{}, tasks.ErrNotFound
	}
	prev := s.items[i]
	s.items[i].Toggle(s.now())
	if err := s.save(); err != nil {
		s.items[i] = prev
		return tasks.Task{}, err
	}
	return s.items[i], nil
}

// Close is a no-op; every mutation is already flushed.
func (s *Store) Close() error {
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, t := range s.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

var _ tasks.Store = (*Store)(nil)
