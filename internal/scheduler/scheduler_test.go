package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courtside/rankings/internal/scraper"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeRunner struct {
	outcomes []scraper.Outcome
	calls    atomic.Int32
}

func (r *fakeRunner) Run(context.Context) scraper.Outcome {
	n := int(r.calls.Add(1)) - 1
	if n >= len(r.outcomes) {
		n = len(r.outcomes) - 1
	}
	return r.outcomes[n]
}

func failure() scraper.Outcome { return scraper.Outcome{Success: false, Reason: "fetch failed"} }
func success() scraper.Outcome { return scraper.Outcome{Success: true, PlayerCount: 100} }

func newTestScheduler(runner CycleRunner, clk *fakeClock, retryDelay time.Duration) *Scheduler {
	return New(runner, clk, Config{RetryDelay: retryDelay}, nil)
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(&fakeRunner{outcomes: []scraper.Outcome{success()}}, &fakeClock{}, time.Hour)
	require.NoError(t, s.Start())
	defer s.Stop()
	require.True(t, s.Running())

	// Second start is a warning no-op, not an error.
	require.NoError(t, s.Start())
	require.True(t, s.Running())
	require.Len(t, s.Jobs(), 1)
}

func TestStopReleasesJobs(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(&fakeRunner{outcomes: []scraper.Outcome{success()}}, &fakeClock{}, time.Hour)
	require.NoError(t, s.Start())
	s.Stop()
	require.False(t, s.Running())
	require.Empty(t, s.Jobs())

	// Stop again is harmless.
	s.Stop()
}

func TestFailedCycleSchedulesOneRetry(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)}
	s := newTestScheduler(&fakeRunner{outcomes: []scraper.Outcome{failure()}}, clk, 24*time.Hour)

	s.weeklyJob()

	at, pending := s.PendingRetry()
	require.True(t, pending)
	require.Equal(t, clk.now.Add(24*time.Hour), at)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, RetryJobID, jobs[0].ID)
}

func TestSecondFailureReplacesPendingRetry(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)}
	s := newTestScheduler(&fakeRunner{outcomes: []scraper.Outcome{failure()}}, clk, 24*time.Hour)

	s.weeklyJob()
	first, pending := s.PendingRetry()
	require.True(t, pending)

	clk.now = clk.now.Add(time.Hour)
	s.weeklyJob()

	second, pending := s.PendingRetry()
	require.True(t, pending)
	require.Equal(t, first.Add(time.Hour), second)

	// Still exactly one retry registered.
	retries := 0
	for _, j := range s.Jobs() {
		if j.ID == RetryJobID {
			retries++
		}
	}
	require.Equal(t, 1, retries)
}

func TestSuccessfulCycleSchedulesNoRetry(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(&fakeRunner{outcomes: []scraper.Outcome{success()}}, &fakeClock{now: time.Now()}, time.Hour)
	s.weeklyJob()

	_, pending := s.PendingRetry()
	require.False(t, pending)
}

func TestRetryFiresOnceAndClearsState(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcomes: []scraper.Outcome{failure(), failure()}}
	s := newTestScheduler(runner, &fakeClock{now: time.Now()}, 10*time.Millisecond)

	s.weeklyJob()
	require.Eventually(t, func() bool {
		return runner.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)

	// Retry consumed; failed retry does not reschedule another.
	require.Eventually(t, func() bool {
		_, pending := s.PendingRetry()
		return !pending
	}, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(2), runner.calls.Load())
}

func TestRetrySuccessRecovers(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcomes: []scraper.Outcome{failure(), success()}}
	s := newTestScheduler(runner, &fakeClock{now: time.Now()}, 10*time.Millisecond)

	s.weeklyJob()
	require.Eventually(t, func() bool {
		return runner.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)

	_, pending := s.PendingRetry()
	require.False(t, pending)
}

func TestStopCancelsPendingRetry(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcomes: []scraper.Outcome{failure()}}
	s := newTestScheduler(runner, &fakeClock{now: time.Now()}, time.Hour)
	require.NoError(t, s.Start())

	s.weeklyJob()
	_, pending := s.PendingRetry()
	require.True(t, pending)

	s.Stop()
	_, pending = s.PendingRetry()
	require.False(t, pending)
}

func TestTriggerNowRunsSynchronously(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcomes: []scraper.Outcome{success()}}
	s := newTestScheduler(runner, &fakeClock{now: time.Now()}, time.Hour)

	out := s.TriggerNow(context.Background())
	require.True(t, out.Success)
	require.Equal(t, int32(1), runner.calls.Load())

	// Manual trigger never touches retry state.
	_, pending := s.PendingRetry()
	require.False(t, pending)
}

func TestWeeklySpecValidation(t *testing.T) {
	t.Parallel()

	s := New(&fakeRunner{outcomes: []scraper.Outcome{success()}}, nil, Config{WeeklySpec: "not a cron spec"}, nil)
	require.Error(t, s.Start())
	require.False(t, s.Running())
}
