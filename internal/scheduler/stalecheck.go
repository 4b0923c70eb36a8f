package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/db"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/stale"
	"github.com/marcus/taskpilot/internal/tasks"
)

// Recorder persists stale check history.
type Recorder interface {
	RecordStaleCheck(ctx context.Context, c db.StaleCheck) error
}

// StaleCheck returns a job that runs stale detection over the open tasks in
// store and records the outcome. rec may be nil, in which case results are
// only logged. When the oracle fails the deterministic selection is still
// recorded along with the error.
func StaleCheck(store tasks.Store, detector *stale.Detector, rec Recorder, now func() time.Time, log *logging.Logger) JobFunc {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logging.Component("stale-check")
	}
	return func(ctx context.Context) error {
		open := false
		list, err := store.List(ctx, tasks.Filter{Completed: &open})
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		at := now()
		check := db.StaleCheck{
			ID:        tasks.NewID(),
			CheckedAt: at,
			Threshold: detector.Threshold(),
		}

		report, detectErr := detector.Detect(ctx, list, at)
		switch {
		case detectErr != nil:
			for _, t := range detector.Select(list, at) {
				check.TaskIDs = append(check.TaskIDs, t.ID)
			}
			check.Error = detectErr.Error()
		default:
			check.TaskIDs = report.StaleTasks
			check.Message = strings.TrimSpace(report.OverallMessage + " " + report.ActionSuggestion)
		}
		check.StaleCount = len(check.TaskIDs)

		fields := logging.Fields{"stale": check.StaleCount, "threshold_days": check.Threshold}
		if detectErr != nil {
			fields["error"] = check.Error
			log.WarnCtx("stale check finished without messages", fields)
		} else {
			log.InfoCtx("stale check finished", fields)
		}

		if rec == nil {
			return nil
		}
		if err := rec.RecordStaleCheck(ctx, check); err != nil {
			return fmt.Errorf("recording stale check: %w", err)
		}
		return nil
	}
}
