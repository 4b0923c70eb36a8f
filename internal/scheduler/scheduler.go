// Package scheduler runs background jobs on a cron expression or a fixed
// interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marcus/taskpilot/internal/logging"
)

var (
	ErrNoSchedule     = errors.New("no schedule configured")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// JobFunc is a scheduled unit of work. Returned errors are logged.
type JobFunc func(ctx context.Context) error

// Scheduler triggers its jobs on a cron expression or an interval.
type Scheduler struct {
	mu       sync.Mutex
	cronExpr string
	interval time.Duration
	jobs     []JobFunc
	log      *logging.Logger

	cron    *cron.Cron
	entry   cron.EntryID
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates a scheduler with no schedule.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Component("scheduler")
	}
	return s
}

// SetCron sets a standard five-field cron expression (descriptors such as
// "@hourly" and "@every 30m" are accepted). It clears any interval.
func (s *Scheduler) SetCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronExpr = expr
	s.interval = 0
	return nil
}

// SetInterval sets a fixed interval, rounded to whole seconds. It clears any
// cron expression.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %v", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	s.cronExpr = ""
	return nil
}

// AddJob registers a job to run on every tick.
func (s *Scheduler) AddJob(job JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start begins scheduling. The scheduler stops when ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	var sched cron.Schedule
	switch {
	case s.cronExpr != "":
		parsed, err := cron.ParseStandard(s.cronExpr)
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.cronExpr, err)
		}
		sched = parsed
	case s.interval > 0:
		sched = cron.Every(s.interval)
	default:
		return ErrNoSchedule
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{log: s.log}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)), cron.WithLogger(logger))
	jobs := append([]JobFunc(nil), s.jobs...)
	s.entry = c.Schedule(sched, cron.FuncJob(func() { s.runJobs(runCtx, jobs) }))
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})

	go s.watch(runCtx, s.done)

	s.log.InfoCtx("scheduler started", logging.Fields{"cron": s.cronExpr, "interval": s.interval.String()})
	return nil
}

// watch stops the cron runner when ctx ends, and waits for in-flight jobs.
func (s *Scheduler) watch(ctx context.Context, done chan struct{}) {
	<-ctx.Done()
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	close(done)
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled tick, or the zero time when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// RunNow runs every registered job once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.mu.Lock()
	jobs := append([]JobFunc(nil), s.jobs...)
	s.mu.Unlock()
	s.runJobs(ctx, jobs)
}

func (s *Scheduler) runJobs(ctx context.Context, jobs []JobFunc) {
	for i, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job(ctx); err != nil {
			s.log.ErrorCtx("scheduled job failed", logging.Fields{"job": i, "error": err.Error()})
		}
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.DebugCtx("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := kvFields(keysAndValues)
	fields["error"] = err.Error()
	l.log.ErrorCtx("cron: "+msg, fields)
}

func kvFields(kv []any) logging.Fields {
	fields := logging.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
