// Package memory provides an in-process Store for tests and development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/signature"
	"github.com/xraph/entitle/subscription"
	entitlestore "github.com/xraph/entitle/store"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store keeps everything in maps behind one mutex. Records are stored
// and returned as deep copies so CAS races stay observable: a caller
// mutating its working copy never leaks into the stored snapshot.
type Store struct {
	mu sync.RWMutex

	records    map[string]*subscription.Record      // principal → record
	signatures map[string]*signature.ConsumedSignature // txSignature → row
	usage      []meter.UsageEvent
	closed     bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records:    make(map[string]*subscription.Record),
		signatures: make(map[string]*signature.ConsumedSignature),
	}
}

// ==================== Subscription records ====================

func (s *Store) GetRecord(_ context.Context, principal string) (*subscription.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.records[principal]; ok {
		return r.Clone(), nil
	}
	return nil, entitle.ErrRecordNotFound
}

func (s *Store) CreateRecord(_ context.Context, r *subscription.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.Principal]; exists {
		return entitle.ErrAlreadyExists
	}
	s.records[r.Principal] = r.Clone()
	return nil
}

func (s *Store) CompareAndSwapRecord(_ context.Context, r *subscription.Record, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[r.Principal]
	if !ok {
		return false, entitle.ErrRecordNotFound
	}
	if current.Version != expectedVersion {
		return false, nil
	}

	next := r.Clone()
	next.Version = expectedVersion + 1
	next.Touch()
	s.records[r.Principal] = next

	// Reflect the committed version back to the caller's copy.
	r.Version = next.Version
	r.UpdatedAt = next.UpdatedAt
	return true, nil
}

// ==================== Signature ledger ====================

func (s *Store) TryReserveSignature(_ context.Context, sig *signature.ConsumedSignature) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.signatures[sig.TxSignature]; exists {
		return false, nil
	}
	cp := *sig
	s.signatures[sig.TxSignature] = &cp
	return true, nil
}

func (s *Store) ReleaseSignature(_ context.Context, txSignature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.signatures, txSignature)
	return nil
}

// ==================== Detailed usage ====================

func (s *Store) IngestUsage(_ context.Context, events []*meter.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.usage = append(s.usage, *e)
	}
	return nil
}

func (s *Store) QueryUsage(_ context.Context, principal string, opts meter.QueryOpts) ([]*meter.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*meter.UsageEvent, 0)
	for i := range s.usage {
		e := s.usage[i]
		if e.Principal != principal {
			continue
		}
		if opts.Model != "" && e.Model != opts.Model {
			continue
		}
		if opts.Premium != nil && e.Premium != *opts.Premium {
			continue
		}
		if !opts.Start.IsZero() && e.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && e.Timestamp.After(opts.End) {
			continue
		}
		cp := e
		matched = append(matched, &cp)
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], nil
}

func (s *Store) PurgeUsage(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.usage[:0]
	var purged int64
	for _, e := range s.usage {
		if e.Timestamp.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.usage = kept
	return purged, nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return entitle.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
