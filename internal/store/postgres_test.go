package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(pgxmock.AnyArg(), "key-a", pgxmock.AnyArg(), pgxmock.AnyArg(), 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	snap, err := s.SaveSnapshot(context.Background(), testTable(), "key-a")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "key-a", snap.SourceKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rowsJSON := `[{"id":"C1","age":44,"estimated_income":"0","gender_key":"","relationship_key":"","advisor_key":"","loyalty":"Gold","risk_weighting":2,"assets":null,"loan_balance":"0","gender_label":"Male","advisor_name":"Dana Reed","relationship_label":"Retail","total_aum":"3500.5"}]`
	qualityJSON := `{"unparseable_dates":2,"zero_collateral":0,"malformed_numerics":0}`

	mock.ExpectQuery(`SELECT id, source_key, rows, quality, created_at FROM snapshots WHERE id = \$1`).
		WithArgs("snap-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source_key", "rows", "quality", "created_at"}).
			AddRow("snap-1", "key-a", rowsJSON, qualityJSON, time.Now().UTC()))

	got, err := s.GetSnapshot(context.Background(), "snap-1")
	require.NoError(t, err)

	assert.Equal(t, "snap-1", got.ID)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "Dana Reed", got.Rows[0].AdvisorName)
	assert.Equal(t, 2, got.Quality.UnparseableDates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source_key, rows, quality, created_at FROM snapshots`).
		WithArgs("key-missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source_key", "rows", "quality", "created_at"}))

	got, err := s.LatestSnapshot(context.Background(), "key-missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source_key, row_count, created_at FROM snapshots`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "source_key", "row_count", "created_at"}).
			AddRow("snap-1", "key-a", 120, time.Now().UTC()).
			AddRow("snap-2", "key-a", 118, time.Now().UTC()))

	metas, err := s.ListSnapshots(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, 120, metas[0].RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}
