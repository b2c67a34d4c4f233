package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courtside/rankings/internal/clock"
	"github.com/courtside/rankings/internal/config"
	"github.com/courtside/rankings/internal/logging"
	"github.com/courtside/rankings/internal/rankings"
	"github.com/courtside/rankings/internal/scheduler"
	"github.com/courtside/rankings/internal/scraper"
	"github.com/courtside/rankings/internal/store"
)

type stubFetcher struct {
	markup string
}

func (f *stubFetcher) FetchPage(context.Context, string) (string, error) {
	return f.markup, nil
}

type memStore struct {
	mu       sync.Mutex
	replaced [][]rankings.Record
}

func (s *memStore) ReplaceAll(_ context.Context, recs []rankings.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = append(s.replaced, recs)
	return nil
}

func (s *memStore) ListPlayers(context.Context, int, int) (store.Page, error) {
	return store.Page{}, nil
}

func (s *memStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replaced) == 0 {
		return 0, nil
	}
	return len(s.replaced[len(s.replaced)-1]), nil
}

func (s *memStore) Close() {}

func (s *memStore) replaceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replaced)
}

func rankingMarkup(n int) string {
	markup := "<table>"
	for i := 1; i <= n; i++ {
		markup += fmt.Sprintf(
			`<tr><td class="rank-cell">%d</td><td><li class="name"><span class="lastName">Player%d</span></li></td><td class="points-cell">%d</td></tr>`,
			i, i, 1000-i,
		)
	}
	return markup + "</table>"
}

func newTestApp(t *testing.T, st store.Store) *App {
	t.Helper()

	loggers := logging.New(t.TempDir(), false)
	f := &stubFetcher{markup: rankingMarkup(3)}
	orch := scraper.New(f, rankings.NewParser(nil), st, "https://example.com/rankings", loggers.Scraping)
	sched := scheduler.New(orch, clock.System{}, scheduler.Config{}, zap.NewNop())

	return &App{
		cfg: config.Config{
			Server: config.ServerConfig{ShutdownTimeout: time.Second},
		},
		loggers: loggers,
		fetcher: f,
		store:   st,
		orch:    orch,
		sched:   sched,
		server:  &http.Server{Addr: "127.0.0.1:0"},
	}
}

// TestRunColdStartPopulatesEmptyStore verifies that an empty table triggers
// an immediate update cycle on startup.
func TestRunColdStartPopulatesEmptyStore(t *testing.T) {
	st := &memStore{}
	a := newTestApp(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return st.replaceCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	a.Close()
}

// TestRunSkipsColdStartWhenPopulated verifies no extra cycle runs when the
// table already holds players.
func TestRunSkipsColdStartWhenPopulated(t *testing.T) {
	st := &memStore{replaced: [][]rankings.Record{{{Rank: 1, Name: "Player1", Points: 999}}}}
	a := newTestApp(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, st.replaceCount())

	cancel()
	require.NoError(t, <-done)
	a.Close()
}

// TestRunOnce drives a single cycle without starting the scheduler.
func TestRunOnce(t *testing.T) {
	st := &memStore{}
	a := newTestApp(t, st)
	defer a.Close()

	outcome := a.RunOnce(context.Background())
	require.True(t, outcome.Success)
	require.Equal(t, 3, outcome.PlayerCount)
	require.Equal(t, 1, st.replaceCount())
}
