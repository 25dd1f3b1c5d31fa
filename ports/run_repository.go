package ports

import (
	"context"

	"bracketlab/domain/core"
	"bracketlab/domain/run"
)

// RunRepository persists pipeline reports
type RunRepository interface {
	// Save stores a report and its flattened metrics
	Save(ctx context.Context, report *run.Report) error

	// Get returns a stored report; unknown IDs yield a NOT_FOUND error
	Get(ctx context.Context, id core.RunID) (*run.Report, error)

	// List returns the most recent runs first, at most limit (all when limit <= 0)
	List(ctx context.Context, limit int) ([]run.Summary, error)
}

// MetricHistoryReader reads one model metric across stored runs
type MetricHistoryReader interface {
	// MetricHistory returns the most recent values first, at most limit (all when limit <= 0)
	MetricHistory(ctx context.Context, kind, featureSet, metric string, limit int) ([]run.MetricPoint, error)
}
