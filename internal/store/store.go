// Package store persists completed spatial analyses in SQLite or PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/sells-group/isolysis/internal/model"
)

// AnalysisRecord is a persisted spatial analysis run.
type AnalysisRecord struct {
	ID        string                       `json:"id"`
	InputHash string                       `json:"input_hash"`
	Result    *model.SpatialAnalysisResult `json:"result"`
	CreatedAt time.Time                    `json:"created_at"`
}

// ListFilter specifies criteria for listing analyses.
type ListFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis results.
type Store interface {
	SaveAnalysis(ctx context.Context, inputHash string, result *model.SpatialAnalysisResult) (*AnalysisRecord, error)
	GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error)
	GetAnalysisByHash(ctx context.Context, inputHash string) (*AnalysisRecord, error)
	ListAnalyses(ctx context.Context, filter ListFilter) ([]AnalysisRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a requested analysis does not exist.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: analysis not found" }

func normalizeLimit(filter ListFilter) int {
	if filter.Limit <= 0 || filter.Limit > 500 {
		return 50
	}
	return filter.Limit
}
