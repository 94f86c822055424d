package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/isolysis/internal/db"
	"github.com/sells-group/isolysis/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
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

// NewPostgresWithPool wraps an existing pool, mainly for tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         UUID PRIMARY KEY,
	input_hash TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_input_hash ON analyses(input_hash);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, inputHash string, result *model.SpatialAnalysisResult) (*AnalysisRecord, error) {
	if result == nil {
		return nil, eris.New("postgres: nil result")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal result")
	}

	err = db.UpsertRow(ctx, s.pool, "analyses",
		[]string{"id", "input_hash", "result", "created_at"},
		[]string{"id"},
		[]any{id, inputHash, resultJSON, now},
	)
	if err != nil {
		return nil, err
	}

	return &AnalysisRecord{ID: id, InputHash: inputHash, Result: result, CreatedAt: now}, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, input_hash, result, created_at FROM analyses WHERE id = $1`, id)
	return scanPostgresRecord(row, id)
}

func (s *PostgresStore) GetAnalysisByHash(ctx context.Context, inputHash string) (*AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, input_hash, result, created_at FROM analyses WHERE input_hash = $1 ORDER BY created_at DESC LIMIT 1`,
		inputHash)
	return scanPostgresRecord(row, inputHash)
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter ListFilter) ([]AnalysisRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, input_hash, result, created_at FROM analyses ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		normalizeLimit(filter), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var resultJSON []byte
		if err := rows.Scan(&rec.ID, &rec.InputHash, &resultJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal result %s", rec.ID)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate analyses")
}

func scanPostgresRecord(row pgx.Row, key string) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var resultJSON []byte
	err := row.Scan(&rec.ID, &rec.InputHash, &resultJSON, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", key)
	}
	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal result %s", rec.ID)
	}
	return &rec, nil
}
