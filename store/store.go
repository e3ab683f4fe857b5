// Package store defines the unified storage interface for the engine's
// two shared mutable resources: the subscription record store and the
// consumed-signature ledger, plus the detailed-usage event log.
//
// Both shared resources are exposed exclusively through atomic
// primitives (compare-and-swap, try-reserve); no component is permitted
// to read-modify-write around them.
package store

import (
	"context"
	"time"

	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/signature"
	"github.com/xraph/entitle/subscription"
)

// Store is the unified storage interface for all Entitle entities.
type Store interface {
	// Subscription record methods
	GetRecord(ctx context.Context, principal string) (*subscription.Record, error)
	CreateRecord(ctx context.Context, r *subscription.Record) error
	CompareAndSwapRecord(ctx context.Context, r *subscription.Record, expectedVersion int64) (bool, error)

	// Signature ledger methods
	TryReserveSignature(ctx context.Context, s *signature.ConsumedSignature) (bool, error)
	ReleaseSignature(ctx context.Context, txSignature string) error

	// Detailed usage methods
	IngestUsage(ctx context.Context, events []*meter.UsageEvent) error
	QueryUsage(ctx context.Context, principal string, opts meter.QueryOpts) ([]*meter.UsageEvent, error)
	PurgeUsage(ctx context.Context, before time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
