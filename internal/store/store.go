// Package store persists the ranking snapshot and serves paginated reads.
package store

import (
	"context"
	"time"

	"github.com/courtside/rankings/internal/rankings"
)

// PersistedPlayer is one durable row of the players table. The whole set is
// destroyed and recreated on every successful update cycle; the table is a
// materialized snapshot of the most recent successful scrape, not a history.
type PersistedPlayer struct {
	Ranking     int       `json:"ranking"`
	Name        string    `json:"name"`
	Points      int       `json:"points"`
	LastUpdated time.Time `json:"last_updated"`
}

// Page is one ranking-ordered slice of the snapshot plus pagination metadata.
type Page struct {
	Players       []PersistedPlayer `json:"players"`
	TotalCount    int               `json:"total_count"`
	ReturnedCount int               `json:"returned_count"`
	HasMore       bool              `json:"has_more"`
	NextOffset    *int              `json:"next_offset"`
}

// Store is the persistence contract the pipeline and the read API share.
type Store interface {
	// ReplaceAll atomically swaps the entire players table for the given
	// records in one transaction. Readers never observe a partial table.
	ReplaceAll(ctx context.Context, records []rankings.Record) error

	// ListPlayers returns players ordered by ranking, offset/limit applied.
	ListPlayers(ctx context.Context, offset, limit int) (Page, error)

	// Count returns the number of persisted players.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying connections.
	Close()
}
