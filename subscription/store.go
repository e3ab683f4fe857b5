package subscription

import "context"

// Store is the record-store contract. All mutation routes through
// CompareAndSwap so concurrent writers cannot silently lose updates.
type Store interface {
	// Get returns the record for a principal, or a not-found error.
	Get(ctx context.Context, principal string) (*Record, error)

	// Create inserts a new record. Returns an already-exists error if
	// the principal has one; the caller then re-reads (create race).
	Create(ctx context.Context, r *Record) error

	// CompareAndSwap persists r iff the stored version for r.Principal
	// equals expectedVersion. On success the stored version becomes
	// expectedVersion+1 and true is returned; false means a concurrent
	// writer won and the caller must re-read before retrying.
	CompareAndSwap(ctx context.Context, r *Record, expectedVersion int64) (bool, error)
}
