// Package mongo implements the entitle store on MongoDB via Grove ORM.
// Compare-and-swap rides on a filtered update matching {principal,
// version}; signature reservation rides on the _id uniqueness of the
// signatures collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/signature"
	entitlestore "github.com/xraph/entitle/store"
	"github.com/xraph/entitle/subscription"
)

// Collection name constants.
const (
	colSubscriptions = "entitle_subscriptions"
	colSignatures    = "entitle_signatures"
	colUsageEvents   = "entitle_usage_events"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all entitle collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("entitle/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Record Store ====================

func (s *Store) GetRecord(ctx context.Context, principal string) (*subscription.Record, error) {
	var m recordModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"principal": principal}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entitle.ErrRecordNotFound
		}
		return nil, fmt.Errorf("entitle/mongo: get record: %w", err)
	}
	return fromRecordModel(&m)
}

func (s *Store) CreateRecord(ctx context.Context, r *subscription.Record) error {
	m := toRecordModel(r)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		// The unique index on principal turns a create race into a
		// duplicate-key error.
		if mongo.IsDuplicateKeyError(err) {
			return entitle.ErrAlreadyExists
		}
		return fmt.Errorf("entitle/mongo: create record: %w", err)
	}
	return nil
}

// CompareAndSwapRecord writes the record only if the stored version still
// matches expectedVersion.
func (s *Store) CompareAndSwapRecord(ctx context.Context, r *subscription.Record, expectedVersion int64) (bool, error) {
	t := now()
	res, err := s.mdb.NewUpdate((*recordModel)(nil)).
		Filter(bson.M{"principal": r.Principal, "version": expectedVersion}).
		Set("tier", string(r.Tier)).
		Set("period_start", r.PeriodStart).
		Set("period_end", r.PeriodEnd).
		Set("messages_used", r.MessagesUsed).
		Set("premium_messages_used", r.PremiumMessagesUsed).
		Set("active", r.Active).
		Set("last_payment_ref", r.LastPaymentRef).
		Set("version", expectedVersion+1).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("entitle/mongo: cas record: %w", err)
	}
	if res.MatchedCount() == 0 {
		// Distinguish a lost race from a missing document.
		var probe recordModel
		err := s.mdb.NewFind(&probe).
			Filter(bson.M{"principal": r.Principal}).
			Scan(ctx)
		if err != nil {
			if isNoDocuments(err) {
				return false, entitle.ErrRecordNotFound
			}
			return false, fmt.Errorf("entitle/mongo: cas probe: %w", err)
		}
		return false, nil
	}

	r.Version = expectedVersion + 1
	r.UpdatedAt = t
	return true, nil
}

// ==================== Signature Ledger ====================

func (s *Store) TryReserveSignature(ctx context.Context, c *signature.ConsumedSignature) (bool, error) {
	m := toSignatureModel(c)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("entitle/mongo: reserve signature: %w", err)
	}
	return true, nil
}

func (s *Store) ReleaseSignature(ctx context.Context, txSignature string) error {
	_, err := s.mdb.Collection(colSignatures).DeleteOne(ctx, bson.M{"_id": txSignature})
	if err != nil {
		return fmt.Errorf("entitle/mongo: release signature: %w", err)
	}
	return nil
}

// ==================== Usage Event Store ====================

func (s *Store) IngestUsage(ctx context.Context, events []*meter.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		m := toUsageEventModel(e)
		_, err := s.mdb.NewInsert(m).Exec(ctx)
		if err != nil {
			// Skip duplicates from a re-flushed batch
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("entitle/mongo: ingest event: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryUsage(ctx context.Context, principal string, opts meter.QueryOpts) ([]*meter.UsageEvent, error) {
	var models []usageEventModel

	filter := bson.M{"principal": principal}
	if opts.Model != "" {
		filter["model"] = opts.Model
	}
	if opts.Premium != nil {
		filter["premium"] = *opts.Premium
	}
	ts := bson.M{}
	if !opts.Start.IsZero() {
		ts["$gte"] = opts.Start
	}
	if !opts.End.IsZero() {
		ts["$lte"] = opts.End
	}
	if len(ts) > 0 {
		filter["timestamp"] = ts
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("entitle/mongo: query usage: %w", err)
	}

	result := make([]*meter.UsageEvent, len(models))
	for i := range models {
		evt, err := fromUsageEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.Collection(colUsageEvents).DeleteMany(ctx, bson.M{
		"timestamp": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("entitle/mongo: purge usage: %w", err)
	}
	return res.DeletedCount, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all entitle collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSubscriptions: {
			{
				Keys:    bson.D{{Key: "principal", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "principal", Value: 1}, {Key: "version", Value: 1}}},
			{Keys: bson.D{{Key: "period_end", Value: 1}}},
		},
		colSignatures: {
			{Keys: bson.D{{Key: "principal", Value: 1}}},
		},
		colUsageEvents: {
			{Keys: bson.D{{Key: "principal", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
	}
}
