package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/courtside/rankings/internal/rankings"
)

// pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresConfig controls the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Postgres implements Store over a players table:
//
//	CREATE TABLE players (
//		ranking      INT PRIMARY KEY,
//		name         TEXT NOT NULL,
//		points       INT NOT NULL,
//		last_updated TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	pool   pool
	logger *zap.Logger
}

// NewPostgres connects a pgx pool and verifies it with a ping.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresWithPool(p, logger), nil
}

// NewPostgresWithPool constructs a store from an existing pool (primarily
// for testing).
func NewPostgresWithPool(p pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: p, logger: logger}
}

// Close releases the pool.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ReplaceAll deletes every player row and inserts one row per record inside
// a single transaction. Every inserted row carries the same UTC timestamp.
// Any failure rolls the whole transaction back and is returned to the
// caller; a partially replaced table is never visible.
func (s *Postgres) ReplaceAll(ctx context.Context, records []rankings.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	// Current count is recorded for the log only.
	var current int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&current); err != nil {
		return fmt.Errorf("count existing players: %w", err)
	}
	s.logger.Info("replacing player snapshot",
		zap.Int("existing", current),
		zap.Int("incoming", len(records)),
	)

	if _, err := tx.Exec(ctx, `DELETE FROM players`); err != nil {
		return fmt.Errorf("delete existing players: %w", err)
	}

	now := time.Now().UTC()
	for _, r := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO players (ranking, name, points, last_updated) VALUES ($1, $2, $3, $4)`,
			r.Rank, r.Name, r.Points, now,
		)
		if err != nil {
			return fmt.Errorf("insert player rank %d: %w", r.Rank, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace transaction: %w", err)
	}
	return nil
}

// ListPlayers returns one ranking-ordered page of the snapshot.
func (s *Postgres) ListPlayers(ctx context.Context, offset, limit int) (Page, error) {
	if offset < 0 {
		return Page{}, fmt.Errorf("offset must be non-negative")
	}
	if limit <= 0 {
		return Page{}, fmt.Errorf("limit must be positive")
	}

	total, err := s.Count(ctx)
	if err != nil {
		return Page{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT ranking, name, points, last_updated FROM players ORDER BY ranking OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return Page{}, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	players := []PersistedPlayer{}
	for rows.Next() {
		var p PersistedPlayer
		if err := rows.Scan(&p.Ranking, &p.Name, &p.Points, &p.LastUpdated); err != nil {
			return Page{}, fmt.Errorf("scan player row: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate player rows: %w", err)
	}

	page := Page{
		Players:       players,
		TotalCount:    total,
		ReturnedCount: len(players),
		HasMore:       offset+limit < total,
	}
	if page.HasMore {
		next := offset + limit
		page.NextOffset = &next
	}
	return page, nil
}

// Count returns the current number of rows in the players table.
func (s *Postgres) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return total, nil
}
