package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/portfolio-cli/internal/pipeline"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	source_key TEXT NOT NULL,
	rows       TEXT NOT NULL,
	quality    TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_source_key ON snapshots(source_key, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, table *pipeline.Table, sourceKey string) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        uuid.New().String(),
		SourceKey: sourceKey,
		Rows:      table.Rows,
		Quality:   table.Quality,
		CreatedAt: time.Now().UTC(),
	}

	rowsJSON, err := json.Marshal(snap.Rows)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal rows")
	}
	qualityJSON, err := json.Marshal(snap.Quality)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal quality")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, source_key, rows, quality, row_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.SourceKey, string(rowsJSON), string(qualityJSON), len(snap.Rows), snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}
	return snap, nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_key, rows, quality, created_at FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", id)
	}
	return snap, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, sourceKey string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_key, rows, quality, created_at FROM snapshots
		 WHERE source_key = ? ORDER BY created_at DESC LIMIT 1`, sourceKey)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}
	return snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_key, row_count, created_at FROM snapshots
		 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var metas []SnapshotMeta
	for rows.Next() {
		var m SnapshotMeta
		if err := rows.Scan(&m.ID, &m.SourceKey, &m.RowCount, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot meta")
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "sqlite: iterate snapshots")
}

// scanSnapshot decodes one snapshot row from either backend's row shape.
func scanSnapshot(row *sql.Row) (*Snapshot, error) {
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
