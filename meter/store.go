package meter

import (
	"context"
	"time"
)

// Store is the detailed-usage store contract.
type Store interface {
	IngestBatch(ctx context.Context, events []*UsageEvent) error
	Query(ctx context.Context, principal string, opts QueryOpts) ([]*UsageEvent, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// QueryOpts filters a usage query.
type QueryOpts struct {
	Model   string
	Premium *bool
	Start   time.Time
	End     time.Time
	Limit   int
	Offset  int
}
