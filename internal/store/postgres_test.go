package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresSaveAnalysis(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "analyses"`).
		WithArgs(pgxmock.AnyArg(), "hash-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.SaveAnalysis(context.Background(), "hash-1", sampleResult())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "hash-1", rec.InputHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAnalysis(t *testing.T) {
	s, mock := newMockStore(t)

	resultJSON, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, input_hash, result, created_at FROM analyses WHERE id`).
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "input_hash", "result", "created_at"}).
			AddRow("a1", "hash-1", resultJSON, time.Now().UTC()))

	rec, err := s.GetAnalysis(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", rec.ID)
	require.NotNil(t, rec.Result)
	assert.Equal(t, 10, rec.Result.TotalPOIs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAnalysis_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, input_hash, result, created_at FROM analyses WHERE id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAnalysis(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAnalysisByHash(t *testing.T) {
	s, mock := newMockStore(t)

	resultJSON, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, input_hash, result, created_at FROM analyses WHERE input_hash`).
		WithArgs("hash-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "input_hash", "result", "created_at"}).
			AddRow("a1", "hash-1", resultJSON, time.Now().UTC()))

	rec, err := s.GetAnalysisByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", rec.InputHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAnalyses(t *testing.T) {
	s, mock := newMockStore(t)

	resultJSON, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, input_hash, result, created_at FROM analyses ORDER BY created_at`).
		WithArgs(50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "input_hash", "result", "created_at"}).
			AddRow("a1", "h1", resultJSON, time.Now().UTC()).
			AddRow("a2", "h2", resultJSON, time.Now().UTC()))

	records, err := s.ListAnalyses(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS analyses`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
