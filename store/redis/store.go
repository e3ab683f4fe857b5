// Package redis implements the entitle store on Redis. Records are
// stored as JSON blobs with the version embedded; compare-and-swap runs
// as a Lua script so the version check and the write are one atomic
// server-side step, and signature reservation is a plain SETNX.
//
// The detailed-usage log lives in per-principal sorted sets scored by
// event timestamp, which makes range queries and purges cheap. Intended
// for deployments that already run Redis and want sub-millisecond
// entitlement state without a relational database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/signature"
	entitlestore "github.com/xraph/entitle/store"
	"github.com/xraph/entitle/subscription"
)

// Key prefixes.
const (
	recordKeyPrefix    = "entitle:rec:"
	signatureKeyPrefix = "entitle:sig:"
	usageKeyPrefix     = "entitle:usage:"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// casScript compares the embedded version of the stored record against
// ARGV[1] and, only on a match, replaces the blob with ARGV[2].
// Returns -1 when the key is absent, 0 on a version mismatch, 1 on success.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return -1
end
local obj = cjson.decode(cur)
if tonumber(obj['version']) ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)

// Store implements store.Store on a Redis client.
type Store struct {
	client *redis.Client
}

// New creates a new Redis store.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Client returns the underlying Redis client for direct access.
func (s *Store) Client() *redis.Client { return s.client }

// Migrate is a no-op: Redis needs no schema.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// ==================== Subscription Record Store ====================

func (s *Store) GetRecord(ctx context.Context, principal string) (*subscription.Record, error) {
	raw, err := s.client.Get(ctx, recordKeyPrefix+principal).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entitle.ErrRecordNotFound
		}
		return nil, fmt.Errorf("entitle/redis: get record: %w", err)
	}

	var r subscription.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("entitle/redis: decode record: %w", err)
	}
	return &r, nil
}

func (s *Store) CreateRecord(ctx context.Context, r *subscription.Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("entitle/redis: encode record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, recordKeyPrefix+r.Principal, raw, 0).Result()
	if err != nil {
		return fmt.Errorf("entitle/redis: create record: %w", err)
	}
	if !ok {
		return entitle.ErrAlreadyExists
	}
	return nil
}

// CompareAndSwapRecord writes the record only if the stored version still
// matches expectedVersion. The whole check-and-set runs server-side.
func (s *Store) CompareAndSwapRecord(ctx context.Context, r *subscription.Record, expectedVersion int64) (bool, error) {
	next := r.Clone()
	next.Version = expectedVersion + 1
	next.Touch()

	raw, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("entitle/redis: encode record: %w", err)
	}

	res, err := casScript.Run(ctx, s.client,
		[]string{recordKeyPrefix + r.Principal},
		expectedVersion, raw,
	).Int()
	if err != nil {
		return false, fmt.Errorf("entitle/redis: cas record: %w", err)
	}

	switch res {
	case -1:
		return false, entitle.ErrRecordNotFound
	case 0:
		return false, nil
	default:
		r.Version = next.Version
		r.UpdatedAt = next.UpdatedAt
		return true, nil
	}
}

// ==================== Signature Ledger ====================

func (s *Store) TryReserveSignature(ctx context.Context, c *signature.ConsumedSignature) (bool, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("entitle/redis: encode signature: %w", err)
	}

	ok, err := s.client.SetNX(ctx, signatureKeyPrefix+c.TxSignature, raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("entitle/redis: reserve signature: %w", err)
	}
	return ok, nil
}

func (s *Store) ReleaseSignature(ctx context.Context, txSignature string) error {
	if err := s.client.Del(ctx, signatureKeyPrefix+txSignature).Err(); err != nil {
		return fmt.Errorf("entitle/redis: release signature: %w", err)
	}
	return nil
}

// ==================== Usage Event Store ====================

func (s *Store) IngestUsage(ctx context.Context, events []*meter.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("entitle/redis: encode event: %w", err)
		}
		pipe.ZAdd(ctx, usageKeyPrefix+e.Principal, redis.Z{
			Score:  float64(e.Timestamp.UnixNano()),
			Member: raw,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("entitle/redis: ingest batch: %w", err)
	}
	return nil
}

func (s *Store) QueryUsage(ctx context.Context, principal string, opts meter.QueryOpts) ([]*meter.UsageEvent, error) {
	min, max := "-inf", "+inf"
	if !opts.Start.IsZero() {
		min = fmt.Sprintf("%d", opts.Start.UnixNano())
	}
	if !opts.End.IsZero() {
		max = fmt.Sprintf("%d", opts.End.UnixNano())
	}

	raws, err := s.client.ZRevRangeByScore(ctx, usageKeyPrefix+principal, &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("entitle/redis: query usage: %w", err)
	}

	// Model and premium filters plus paging are applied client-side;
	// the sorted set only indexes by time.
	var result []*meter.UsageEvent
	skipped := 0
	for _, raw := range raws {
		var e meter.UsageEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("entitle/redis: decode event: %w", err)
		}
		if opts.Model != "" && e.Model != opts.Model {
			continue
		}
		if opts.Premium != nil && e.Premium != *opts.Premium {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		result = append(result, &e)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	cutoff := fmt.Sprintf("(%d", before.UnixNano())

	var purged int64
	iter := s.client.Scan(ctx, 0, usageKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", cutoff).Result()
		if err != nil {
			return purged, fmt.Errorf("entitle/redis: purge usage: %w", err)
		}
		purged += n
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("entitle/redis: purge scan: %w", err)
	}
	return purged, nil
}
