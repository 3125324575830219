package telemetry

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot *BatchSnapshot) error
	Close() error
}

// BatchSnapshot captures the outcome of one processed batch. Pure
// observability: nothing in the clustering core reads it back.
type BatchSnapshot struct {
	Timestamp time.Time
	GridKey   string
	Batch     BatchMetrics
	Clusters  ClusterMetrics
}

// Domain value objects
type BatchMetrics struct {
	Points int
	Groups int
}

type ClusterMetrics struct {
	Potential int
	Outlier   int
	Created   int
}
