// Package scraper composes fetch, parse, and store into one update cycle.
package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/courtside/rankings/internal/fetcher"
	"github.com/courtside/rankings/internal/rankings"
	"github.com/courtside/rankings/internal/store"
	"github.com/courtside/rankings/internal/telemetry"
)

// Outcome summarizes one update cycle. Failures never escape the
// orchestrator as errors; callers branch on Success and read Reason.
type Outcome struct {
	Success     bool          `json:"success"`
	Reason      string        `json:"reason,omitempty"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
	PlayerCount int           `json:"player_count"`

	err error
}

// Err returns the underlying error of a failed cycle, if any.
func (o Outcome) Err() error { return o.err }

// Orchestrator runs the fetch → parse → replace pipeline. It never retries;
// retry policy lives in the scheduler.
type Orchestrator struct {
	fetcher fetcher.Fetcher
	parser  *rankings.Parser
	store   store.Store
	url     string
	logger  *zap.Logger

	group singleflight.Group
}

// New builds an Orchestrator. logger should be the scraping sink.
func New(f fetcher.Fetcher, p *rankings.Parser, s store.Store, url string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher: f,
		parser:  p,
		store:   s,
		url:     url,
		logger:  logger,
	}
}

// Run executes one update cycle. Concurrent callers are collapsed onto a
// single in-flight cycle and all receive its outcome; two full-replace
// transactions must never interleave.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	v, _, _ := o.group.Do("update-cycle", func() (any, error) {
		return o.runCycle(ctx), nil
	})
	return v.(Outcome)
}

func (o *Orchestrator) runCycle(ctx context.Context) Outcome {
	o.logger.Info("starting rankings update cycle", zap.String("url", o.url))
	start := time.Now()

	markup, err := o.fetcher.FetchPage(ctx, o.url)
	if err != nil {
		return o.fail(start, "fetch failed", err)
	}

	records := o.parser.Parse(markup)
	if len(records) == 0 {
		// An empty parse must not wipe the table with an empty replace.
		return o.fail(start, "no player records extracted", nil)
	}

	if err := o.store.ReplaceAll(ctx, records); err != nil {
		return o.fail(start, "store update failed", err)
	}

	duration := time.Since(start)
	telemetry.ObserveCycle(true, duration, len(records))
	o.logger.Info("rankings update completed",
		zap.Duration("duration", duration),
		zap.Int("players", len(records)),
		zap.String("top", summarizeTop(records, 3)),
	)
	return Outcome{
		Success:     true,
		Duration:    duration,
		DurationMS:  duration.Milliseconds(),
		PlayerCount: len(records),
	}
}

func (o *Orchestrator) fail(start time.Time, reason string, err error) Outcome {
	duration := time.Since(start)
	telemetry.ObserveCycle(false, duration, 0)
	fields := []zap.Field{
		zap.String("reason", reason),
		zap.Duration("duration", duration),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	o.logger.Error("rankings update failed", fields...)
	return Outcome{
		Reason:     reason,
		Duration:   duration,
		DurationMS: duration.Milliseconds(),
		err:        err,
	}
}

// summarizeTop renders the first n records as a one-line summary for the log.
func summarizeTop(records []rankings.Record, n int) string {
	if len(records) < n {
		n = len(records)
	}
	parts := make([]string, 0, n)
	for _, r := range records[:n] {
		parts = append(parts, fmt.Sprintf("#%d %s (%d)", r.Rank, r.Name, r.Points))
	}
	return strings.Join(parts, " | ")
}
