package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowgpt/internal/metrics"
	"github.com/rendis/flowgpt/pkg/schema"
)

// MaintenanceStore is the part of the store the maintenance job touches.
type MaintenanceStore interface {
	PruneExecutions(ctx context.Context, completedBefore time.Time) ([]int64, error)
	Vacuum(ctx context.Context) error
}

// Config drives the maintenance job.
type Config struct {
	// Retention is how long completed executions are kept.
	Retention time.Duration
	// Schedule is a five-field cron expression or a descriptor like @daily.
	Schedule string
	// Interval is how often the loop checks whether a run is due. Defaults to 60s.
	Interval time.Duration
	Clock    func() time.Time
	// Forget, when set, receives the ids of every pruned execution so cached
	// statuses can be dropped. cache.Statuses.Forget fits.
	Forget func(ctx context.Context, executionIDs ...int64)
}

// Report describes one maintenance run.
type Report struct {
	RanAt  time.Time `json:"ran_at"`
	Cutoff time.Time `json:"cutoff"`
	Pruned int64     `json:"pruned"`
	Status string    `json:"status"`
}

// Scheduler prunes old executions on a cron schedule.
type Scheduler struct {
	store     MaintenanceStore
	retention time.Duration
	schedule  cron.Schedule
	interval  time.Duration
	now       func() time.Time
	forget    func(ctx context.Context, executionIDs ...int64)
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	stateMu sync.Mutex
	running bool
	nextRun time.Time
	last    *Report
}

// parser accepts standard cron fields plus descriptors (@daily, @every 1h).
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewScheduler validates cfg. A non-positive retention is rejected; callers
// skip the scheduler entirely when pruning is disabled.
func NewScheduler(s MaintenanceStore, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Retention <= 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"maintenance retention must be positive, got %s", cfg.Retention)
	}
	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"parse maintenance schedule %q: %s", cfg.Schedule, err.Error()).WithCause(err)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     s,
		retention: cfg.Retention,
		schedule:  schedule,
		interval:  cfg.Interval,
		now:       cfg.Clock,
		forget:    cfg.Forget,
		logger:    logger,
	}, nil
}

// Start launches the background loop. The first run is due at the next
// schedule point after now.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.stateMu.Lock()
	s.nextRun = s.schedule.Next(s.now())
	next := s.nextRun
	s.stateMu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("maintenance scheduler started",
		slog.Duration("retention", s.retention), slog.Time("next_run", next))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs the job when its next run time has passed.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	s.stateMu.Lock()
	due := !s.nextRun.After(now)
	s.stateMu.Unlock()
	if !due {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("maintenance run failed", slog.String("error", err.Error()))
	}
}

// RunOnce prunes completed executions older than the retention window and
// vacuums the database. Concurrent calls are collapsed: while one run is in
// flight the others return a CONFLICT error.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	if !s.tryAcquire() {
		return nil, schema.NewError(schema.ErrCodeConflict, "maintenance run already in progress")
	}
	defer s.release()

	now := s.now()
	report := &Report{RanAt: now, Cutoff: now.Add(-s.retention), Status: "success"}

	pruned, err := s.store.PruneExecutions(ctx, report.Cutoff)
	if err == nil {
		report.Pruned = int64(len(pruned))
		metrics.RecordPruned(report.Pruned)
		if s.forget != nil && len(pruned) > 0 {
			s.forget(ctx, pruned...)
		}
		err = s.store.Vacuum(ctx)
	}
	if err != nil {
		report.Status = "error"
	}

	s.stateMu.Lock()
	s.last = report
	s.nextRun = s.schedule.Next(now)
	s.stateMu.Unlock()

	if err != nil {
		return report, fmt.Errorf("maintenance at %s: %w", now.Format(time.RFC3339), err)
	}
	s.logger.Info("maintenance run completed",
		slog.Int64("pruned", report.Pruned),
		slog.Time("cutoff", report.Cutoff),
	)
	return report, nil
}

func (s *Scheduler) tryAcquire() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.running = false
}

// NextRun returns when the job is next due. Zero before Start or RunOnce.
func (s *Scheduler) NextRun() time.Time {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.nextRun
}

// LastRun returns the most recent report, or nil.
func (s *Scheduler) LastRun() *Report {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// CalculateNextRun computes the next run time for a cron expression.
func CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("maintenance scheduler stopped")
	return nil
}
