// Package postgres implements the entitle store on PostgreSQL via Grove
// ORM. The recommended backend for production: the conditional-UPDATE
// compare-and-swap and insert-on-conflict reservation are both single
// statements, so no explicit transactions are needed.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/signature"
	entitlestore "github.com/xraph/entitle/store"
	"github.com/xraph/entitle/subscription"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("entitle/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("entitle/postgres: migration failed: %w", err)
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
	m := new(recordModel)
	err := s.pg.NewSelect(m).
		Where("principal = $1", principal).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrRecordNotFound
		}
		return nil, err
	}
	return fromRecordModel(m)
}

func (s *Store) CreateRecord(ctx context.Context, r *subscription.Record) error {
	m := toRecordModel(r)
	res, err := s.pg.NewInsert(m).
		OnConflict("(principal) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entitle.ErrAlreadyExists
	}
	return nil
}

// CompareAndSwapRecord writes the record only if the stored version still
// matches expectedVersion. Zero rows affected means a concurrent writer
// committed first; the caller re-reads and retries.
func (s *Store) CompareAndSwapRecord(ctx context.Context, r *subscription.Record, expectedVersion int64) (bool, error) {
	t := now()
	res, err := s.pg.NewUpdate((*recordModel)(nil)).
		Set("tier = $1", string(r.Tier)).
		Set("period_start = $2", r.PeriodStart).
		Set("period_end = $3", r.PeriodEnd).
		Set("messages_used = $4", r.MessagesUsed).
		Set("premium_messages_used = $5", r.PremiumMessagesUsed).
		Set("active = $6", r.Active).
		Set("last_payment_ref = $7", r.LastPaymentRef).
		Set("version = $8", expectedVersion+1).
		Set("updated_at = $9", t).
		Where("principal = $10", r.Principal).
		Where("version = $11", expectedVersion).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		// Distinguish a lost race from a missing row.
		err := s.pg.NewSelect(new(recordModel)).
			Where("principal = $1", r.Principal).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return false, entitle.ErrRecordNotFound
			}
			return false, err
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
	res, err := s.pg.NewInsert(m).
		OnConflict("(tx_signature) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) ReleaseSignature(ctx context.Context, txSignature string) error {
	_, err := s.pg.NewDelete((*signatureModel)(nil)).
		Where("tx_signature = $1", txSignature).
		Exec(ctx)
	return err
}

// ==================== Usage Event Store ====================

func (s *Store) IngestUsage(ctx context.Context, events []*meter.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}
	models := make([]usageEventModel, len(events))
	for i, e := range events {
		models[i] = *toUsageEventModel(e)
	}
	_, err := s.pg.NewInsert(&models).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) QueryUsage(ctx context.Context, principal string, opts meter.QueryOpts) ([]*meter.UsageEvent, error) {
	var models []usageEventModel
	q := s.pg.NewSelect(&models).
		Where("principal = $1", principal)

	argIdx := 2
	if opts.Model != "" {
		q = q.Where(fmt.Sprintf("model = $%d", argIdx), opts.Model)
		argIdx++
	}
	if opts.Premium != nil {
		q = q.Where(fmt.Sprintf("premium = $%d", argIdx), *opts.Premium)
		argIdx++
	}
	if !opts.Start.IsZero() {
		q = q.Where(fmt.Sprintf("timestamp >= $%d", argIdx), opts.Start)
		argIdx++
	}
	if !opts.End.IsZero() {
		q = q.Where(fmt.Sprintf("timestamp <= $%d", argIdx), opts.End)
		argIdx++
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.pg.NewDelete((*usageEventModel)(nil)).
		Where("timestamp < $1", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
