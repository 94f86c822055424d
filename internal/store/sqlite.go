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

	"github.com/sells-group/isolysis/internal/model"
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
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	input_hash TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analyses_input_hash ON analyses(input_hash);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, inputHash string, result *model.SpatialAnalysisResult) (*AnalysisRecord, error) {
	if result == nil {
		return nil, eris.New("sqlite: nil result")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, input_hash, result, created_at) VALUES (?, ?, ?, ?)`,
		id, inputHash, string(resultJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert analysis")
	}

	return &AnalysisRecord{ID: id, InputHash: inputHash, Result: result, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_hash, result, created_at FROM analyses WHERE id = ?`, id)
	return scanSQLiteRecord(row, id)
}

func (s *SQLiteStore) GetAnalysisByHash(ctx context.Context, inputHash string) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_hash, result, created_at FROM analyses WHERE input_hash = ? ORDER BY created_at DESC LIMIT 1`,
		inputHash)
	return scanSQLiteRecord(row, inputHash)
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter ListFilter) ([]AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_hash, result, created_at FROM analyses ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		normalizeLimit(filter), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close() //nolint:errcheck

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var resultJSON string
		if err := rows.Scan(&rec.ID, &rec.InputHash, &resultJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal result %s", rec.ID)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate analyses")
}

func scanSQLiteRecord(row *sql.Row, key string) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var resultJSON string
	err := row.Scan(&rec.ID, &rec.InputHash, &resultJSON, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", key)
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal result %s", rec.ID)
	}
	return &rec, nil
}
