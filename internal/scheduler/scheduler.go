// Package scheduler drives the weekly update cycle and its one-shot retry.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/courtside/rankings/internal/clock"
	"github.com/courtside/rankings/internal/scraper"
)

// Job identifiers reported by Jobs and the status endpoint.
const (
	WeeklyJobID = "weekly_rankings"
	RetryJobID  = "rankings_retry"
)

// CycleRunner runs one update cycle. The orchestrator satisfies it.
type CycleRunner interface {
	Run(ctx context.Context) scraper.Outcome
}

// Config controls trigger cadence.
type Config struct {
	// WeeklySpec is a cron expression evaluated in UTC.
	// Default: Monday 23:00.
	WeeklySpec string
	// RetryDelay is how long after a failed cycle the single retry fires.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.WeeklySpec == "" {
		c.WeeklySpec = "0 23 * * 1"
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 24 * time.Hour
	}
	return c
}

// JobInfo describes one registered job for diagnostics.
type JobInfo struct {
	ID      string    `json:"id"`
	NextRun time.Time `json:"next_run"`
}

// Scheduler owns the background cron and the pending-retry state. The retry
// is held as explicit state rather than an opaque rescheduled timer, so the
// at-most-one-pending invariant is directly observable.
type Scheduler struct {
	runner CycleRunner
	clock  clock.Clock
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	cron       *cron.Cron
	weeklyID   cron.EntryID
	running    bool
	retryAt    time.Time
	retryTimer *time.Timer
}

// New builds a Scheduler. logger should be the scraping sink.
func New(runner CycleRunner, clk clock.Clock, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Scheduler{
		runner: runner,
		clock:  clk,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Start registers the weekly job and launches the cron goroutine. Calling
// Start while already running warns and does nothing.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("scheduler already running, skipping start")
		return nil
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{logger: s.logger}),
	)
	id, err := c.AddFunc(s.cfg.WeeklySpec, s.weeklyJob)
	if err != nil {
		return fmt.Errorf("register weekly job %q: %w", s.cfg.WeeklySpec, err)
	}
	c.Start()

	s.cron = c
	s.weeklyID = id
	s.running = true
	s.logger.Info("scheduler started",
		zap.String("weekly_spec", s.cfg.WeeklySpec),
		zap.Duration("retry_delay", s.cfg.RetryDelay),
	)
	return nil
}

// Stop halts the cron and cancels any pending retry. Stopping while not
// running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.clearRetryLocked()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// TriggerNow runs one cycle synchronously, bypassing the timer. Used for
// operator-invoked updates and cold-start population.
func (s *Scheduler) TriggerNow(ctx context.Context) scraper.Outcome {
	s.logger.Info("manual rankings update triggered")
	return s.runner.Run(ctx)
}

// Jobs lists the registered jobs and, when pending, the retry.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []JobInfo
	if s.running && s.cron != nil {
		entry := s.cron.Entry(s.weeklyID)
		jobs = append(jobs, JobInfo{ID: WeeklyJobID, NextRun: entry.Next})
	}
	if !s.retryAt.IsZero() {
		jobs = append(jobs, JobInfo{ID: RetryJobID, NextRun: s.retryAt})
	}
	return jobs
}

// PendingRetry reports the scheduled time of the pending retry, if any.
func (s *Scheduler) PendingRetry() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryAt, !s.retryAt.IsZero()
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) weeklyJob() {
	s.logger.Info("scheduled job triggered", zap.String("job", WeeklyJobID))
	out := s.runner.Run(context.Background())
	if out.Success {
		s.logger.Info("weekly rankings update succeeded",
			zap.Int("players", out.PlayerCount),
		)
		return
	}
	s.logger.Warn("weekly rankings update failed, scheduling retry",
		zap.String("reason", out.Reason),
	)
	s.scheduleRetry()
}

// scheduleRetry registers the one-shot retry, replacing any retry still
// pending so at most one exists at a time.
func (s *Scheduler) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.logger.Info("replacing pending retry job", zap.Time("was", s.retryAt))
	}
	s.retryAt = s.clock.Now().Add(s.cfg.RetryDelay)
	s.retryTimer = time.AfterFunc(s.cfg.RetryDelay, s.retryJob)
	s.logger.Info("retry job scheduled",
		zap.String("job", RetryJobID),
		zap.Time("at", s.retryAt),
	)
}

func (s *Scheduler) retryJob() {
	s.mu.Lock()
	s.clearRetryLocked()
	s.mu.Unlock()

	s.logger.Info("retry job triggered", zap.String("job", RetryJobID))
	out := s.runner.Run(context.Background())
	if out.Success {
		s.logger.Info("retry attempt succeeded, recovered from initial failure")
		return
	}
	// Bounded to one retry per weekly failure; unbounded retries would hammer
	// a page that is already refusing us.
	s.logger.Error("retry attempt failed, manual intervention required",
		zap.String("reason", out.Reason),
		zap.Error(out.Err()),
	)
}

func (s *Scheduler) clearRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.retryAt = time.Time{}
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
