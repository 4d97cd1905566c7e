package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/portfolio-cli/internal/pipeline"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	source_key TEXT NOT NULL,
	rows       JSONB NOT NULL,
	quality    JSONB NOT NULL,
	row_count  INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_source_key ON snapshots(source_key, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, table *pipeline.Table, sourceKey string) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        uuid.New().String(),
		SourceKey: sourceKey,
		Rows:      table.Rows,
		Quality:   table.Quality,
		CreatedAt: time.Now().UTC(),
	}

	rowsJSON, err := json.Marshal(snap.Rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal rows")
	}
	qualityJSON, err := json.Marshal(snap.Quality)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal quality")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, source_key, rows, quality, row_count, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID, snap.SourceKey, string(rowsJSON), string(qualityJSON), len(snap.Rows), snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}
	return snap, nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source_key, rows, quality, created_at FROM snapshots WHERE id = $1`, id)
	snap, err := scanPgSnapshot(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", id)
	}
	return snap, nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, sourceKey string) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source_key, rows, quality, created_at FROM snapshots
		 WHERE source_key = $1 ORDER BY created_at DESC LIMIT 1`, sourceKey)
	snap, err := scanPgSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}
	return snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_key, row_count, created_at FROM snapshots
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var metas []SnapshotMeta
	for rows.Next() {
		var m SnapshotMeta
		if err := rows.Scan(&m.ID, &m.SourceKey, &m.RowCount, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot meta")
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "postgres: iterate snapshots")
}

func scanPgSnapshot(row pgx.Row) (*Snapshot, error) {
	var snap Snapshot
	var rowsJSON, qualityJSON string
	if err := row.Scan(&snap.ID, &snap.SourceKey, &rowsJSON, &qualityJSON, &snap.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rowsJSON), &snap.Rows); err != nil {
		return nil, eris.Wrap(err, "unmarshal rows")
	}
	if err := json.Unmarshal([]byte(qualityJSON), &snap.Quality); err != nil {
		return nil, eris.Wrap(err, "unmarshal quality")
	}
	return &snap, nil
}

// Open selects a backend by driver name ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
