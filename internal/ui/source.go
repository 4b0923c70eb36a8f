package ui

import (
	"context"
	"time"

	"github.com/marcus/taskpilot/internal/recommend"
	"github.com/marcus/taskpilot/internal/stale"
	"github.com/marcus/taskpilot/internal/tasks"
)

// Snapshot is everything the board shows after one load.
type Snapshot struct {
	Tasks           []tasks.Task
	Recommendations *recommend.Set
	Stale           *stale.Report
	StaleTasks      []stale.Task
	RecommendErr    error
	StaleErr        error
	LoadedAt        time.Time
}

// Source produces board snapshots and applies edits.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
	Toggle(ctx context.Context, id string) error
}

// StoreSource loads the board from a task store and the oracle features.
// Oracle failures are recorded on the snapshot instead of failing the load.
type StoreSource struct {
	Store       tasks.Store
	Recommender *recommend.Recommender
	Detector    *stale.Detector
	Now         func() time.Time
}

// Load implements Source.
func (s *StoreSource) Load(ctx context.Context) (*Snapshot, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	list, err := s.Store.List(ctx, tasks.Filter{})
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Tasks: list, LoadedAt: now()}
	if len(list) == 0 {
		return snap, nil
	}

	if s.Recommender != nil {
		snap.Recommendations, snap.RecommendErr = s.Recommender.Recommend(ctx, list)
	}
	if s.Detector != nil {
		snap.StaleTasks = s.Detector.Select(list, snap.LoadedAt)
		snap.Stale, snap.StaleErr = s.Detector.Detect(ctx, list, snap.LoadedAt)
	}
	return snap, nil
}

// Toggle implements Source.
func (s *StoreSource) Toggle(ctx context.Context, id string) error {
	_, err := s.Store.ToggleComplete(ctx, id)
	return err
}
