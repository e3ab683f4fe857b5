package entitle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/entitle/gate"
	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/payment"
	"github.com/xraph/entitle/plugin"
	"github.com/xraph/entitle/signature"
	"github.com/xraph/entitle/store"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/tier"
)

// Engine is the subscription entitlement and payment verification engine.
type Engine struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	catalog  *tier.Catalog
	verifier payment.ChainVerifier

	treasuryAddress string
	now             func() time.Time
	casRetryLimit   int
	verifyTimeout   time.Duration

	// Background workers
	usageBuffer chan *meter.UsageEvent
	stopChan    chan struct{}
	wg          sync.WaitGroup

	// Configuration
	usageBatchSize     int
	usageFlushInterval time.Duration
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:              s,
		plugins:            plugin.NewRegistry(),
		logger:             slog.Default(),
		catalog:            tier.Default(),
		now:                func() time.Time { return time.Now().UTC() },
		casRetryLimit:      5,
		verifyTimeout:      10 * time.Second,
		usageBuffer:        make(chan *meter.UsageEvent, 10000),
		stopChan:           make(chan struct{}),
		usageBatchSize:     100,
		usageFlushInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithCatalog replaces the default tier catalog.
func WithCatalog(c *tier.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithChainVerifier sets the on-chain transfer verifier. Payments are
// rejected with ErrNoChainVerifier if none is configured.
func WithChainVerifier(v payment.ChainVerifier) Option {
	return func(e *Engine) {
		e.verifier = v
	}
}

// WithTreasuryAddress sets the recipient address verified transfers must
// have paid into.
func WithTreasuryAddress(addr string) Option {
	return func(e *Engine) {
		e.treasuryAddress = addr
	}
}

// WithClock overrides the engine's time source. Used in tests to drive
// period lapse.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithCASRetryLimit bounds optimistic-concurrency retries before an
// operation gives up with ErrConflict.
func WithCASRetryLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.casRetryLimit = n
		}
	}
}

// WithVerifyTimeout bounds a single chain verification call.
func WithVerifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.verifyTimeout = d
		}
	}
}

// WithUsageBufferConfig configures detailed-usage flush parameters.
func WithUsageBufferConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		e.usageBatchSize = batchSize
		e.usageFlushInterval = flushInterval
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// Start begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Start usage flush worker
	e.wg.Add(1)
	go e.usageFlushWorker(ctx)

	e.logger.Info("entitle engine started",
		"tiers", e.catalog.IDs(),
		"batch_size", e.usageBatchSize,
		"flush_interval", e.usageFlushInterval,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Catalog returns the active tier catalog.
func (e *Engine) Catalog() *tier.Catalog {
	return e.catalog
}

// ──────────────────────────────────────────────────
// Status
// ──────────────────────────────────────────────────

// Status combines a principal's stored record with the capabilities it
// currently grants.
type Status struct {
	Record       *subscription.Record `json:"record"`
	Capabilities gate.Capabilities    `json:"capabilities"`
}

// GetStatus returns the current entitlement status for a principal,
// lazily creating a Free-tier record on first sight. Read-only: a lapsed
// period is reflected in the capabilities but the stored record is only
// corrected by the next usage write.
func (e *Engine) GetStatus(ctx context.Context, principal string) (*Status, error) {
	rec, err := e.loadRecord(ctx, principal)
	if err != nil {
		return nil, err
	}

	return &Status{
		Record:       rec,
		Capabilities: gate.Evaluate(rec, e.catalog, e.now()),
	}, nil
}

// ──────────────────────────────────────────────────
// Usage Metering
// ──────────────────────────────────────────────────

// TrackUsage atomically checks quota for one message of the requested
// class and increments the counter. On denial the returned outcome still
// carries the used/limit snapshot alongside ErrQuotaExceeded.
func (e *Engine) TrackUsage(ctx context.Context, principal string, premium bool) (*meter.UsageOutcome, error) {
	return e.checkAndIncrement(ctx, principal, premium)
}

// TrackDetailedUsage runs the same quota path as TrackUsage and then
// buffers a detailed usage event with token counts for cost accounting.
// The quota effect is applied even when the buffer is saturated; the
// caller sees ErrUsageBufferFull only for the dropped event.
func (e *Engine) TrackDetailedUsage(ctx context.Context, principal, model string, premium bool, inputTokens, outputTokens int64) (*meter.UsageOutcome, error) {
	outcome, err := e.checkAndIncrement(ctx, principal, premium)
	if err != nil {
		return outcome, err
	}

	event := &meter.UsageEvent{
		ID:           id.NewUsageEventID(),
		Principal:    principal,
		Model:        model,
		Premium:      premium,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Timestamp:    e.now(),
	}

	select {
	case e.usageBuffer <- event:
		return outcome, nil
	default:
		return outcome, ErrUsageBufferFull
	}
}

func (e *Engine) checkAndIncrement(ctx context.Context, principal string, premium bool) (*meter.UsageOutcome, error) {
	for attempt := 0; attempt < e.casRetryLimit; attempt++ {
		rec, err := e.loadRecord(ctx, principal)
		if err != nil {
			return nil, err
		}

		now := e.now()
		work := rec.Clone()
		fromTier, rolled := rollover(work, e.catalog, now)

		def, ok := e.catalog.Lookup(work.Tier)
		if !ok {
			return nil, ErrUnknownTier
		}

		// Eligibility before quota: a tier with no premium allowance
		// is ineligible, not out of quota.
		if premium && def.PremiumMessageLimit == 0 {
			return nil, ErrTierIneligible
		}

		used := work.Used(premium)
		limit := def.Limit(premium)
		if used >= limit {
			outcome := &meter.UsageOutcome{
				Premium: premium,
				Used:    used,
				Limit:   limit,
				Reason:  "quota exhausted",
			}
			e.plugins.EmitQuotaExceeded(ctx, principal, premium, used, limit)
			return outcome, ErrQuotaExceeded
		}

		work.Increment(premium)

		swapped, err := e.store.CompareAndSwapRecord(ctx, work, rec.Version)
		if err != nil {
			return nil, err
		}
		if !swapped {
			continue
		}

		if rolled {
			e.plugins.EmitPeriodRolledOver(ctx, principal, string(fromTier), string(work.Tier))
		}

		outcome := &meter.UsageOutcome{
			Allowed:   true,
			Premium:   premium,
			Used:      work.Used(premium),
			Limit:     limit,
			Remaining: limit - work.Used(premium),
		}
		e.plugins.EmitUsageTracked(ctx, principal, outcome)
		return outcome, nil
	}

	return nil, ErrConflict
}

// ResetUsage zeroes both usage counters for a principal without touching
// the billing period. Privileged: the context must carry an admin Actor.
// Idempotent.
func (e *Engine) ResetUsage(ctx context.Context, principal string) error {
	actor, ok := ActorFrom(ctx)
	if !ok || !actor.Admin {
		return ErrForbidden
	}

	for attempt := 0; attempt < e.casRetryLimit; attempt++ {
		rec, err := e.loadRecord(ctx, principal)
		if err != nil {
			return err
		}

		if rec.MessagesUsed == 0 && rec.PremiumMessagesUsed == 0 {
			return nil
		}

		work := rec.Clone()
		work.ResetCounters()

		swapped, err := e.store.CompareAndSwapRecord(ctx, work, rec.Version)
		if err != nil {
			return err
		}
		if swapped {
			e.logger.Info("usage counters reset",
				"principal", principal,
				"actor", actor.ID,
			)
			e.plugins.EmitUsageReset(ctx, principal)
			return nil
		}
	}

	return ErrConflict
}

// QueryUsage returns detailed usage events for a principal.
func (e *Engine) QueryUsage(ctx context.Context, principal string, opts meter.QueryOpts) ([]*meter.UsageEvent, error) {
	if principal == "" {
		return nil, ErrInvalidPrincipal
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, ErrInvalidInput
	}
	return e.store.QueryUsage(ctx, principal, opts)
}

// PurgeUsage deletes detailed usage events older than the cutoff and
// returns the number removed.
func (e *Engine) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	return e.store.PurgeUsage(ctx, before)
}

// usageFlushWorker flushes detailed usage events to the store.
func (e *Engine) usageFlushWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*meter.UsageEvent, 0, e.usageBatchSize)
	ticker := time.NewTicker(e.usageFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Drain anything still buffered, then final flush
			for {
				select {
				case event := <-e.usageBuffer:
					batch = append(batch, event)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				e.flushUsageBatch(ctx, batch)
			}
			return

		case event := <-e.usageBuffer:
			batch = append(batch, event)
			if len(batch) >= e.usageBatchSize {
				e.flushUsageBatch(ctx, batch)
				batch = make([]*meter.UsageEvent, 0, e.usageBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				e.flushUsageBatch(ctx, batch)
				batch = make([]*meter.UsageEvent, 0, e.usageBatchSize)
			}
		}
	}
}

func (e *Engine) flushUsageBatch(ctx context.Context, batch []*meter.UsageEvent) {
	start := time.Now()

	if err := e.store.IngestUsage(ctx, batch); err != nil {
		e.logger.Error("failed to flush usage batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	e.plugins.EmitUsageFlushed(ctx, len(batch), elapsed)

	e.logger.Debug("flushed usage batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

// ProcessPayment verifies a payment claim and, on success, upgrades or
// renews the principal's record to the target tier with a fresh period.
// The transaction signature is reserved before any other check so that a
// duplicate claim fails fast; every later failure releases the
// reservation so an honest retry can succeed.
func (e *Engine) ProcessPayment(ctx context.Context, claim payment.Claim) (*subscription.Record, error) {
	if err := claim.Validate(); err != nil {
		e.plugins.EmitPaymentRejected(ctx, &claim, err)
		return nil, err
	}

	now := e.now()

	reserved, err := e.store.TryReserveSignature(ctx, signature.New(claim.TxSignature, claim.Principal, now))
	if err != nil {
		return nil, err
	}
	if !reserved {
		e.logger.Warn("payment signature replay detected",
			"principal", claim.Principal,
			"tx_signature", claim.TxSignature,
		)
		e.plugins.EmitReplayDetected(ctx, claim.Principal, claim.TxSignature)
		e.plugins.EmitPaymentRejected(ctx, &claim, ErrDuplicatePayment)
		return nil, ErrDuplicatePayment
	}

	rec, err := e.verifyAndApply(ctx, claim, now)
	if err != nil {
		// The reservation belongs to this claim only as long as it
		// succeeds; release it so a corrected retry is not locked out.
		if relErr := e.store.ReleaseSignature(ctx, claim.TxSignature); relErr != nil {
			e.logger.Error("failed to release signature reservation",
				"tx_signature", claim.TxSignature,
				"error", relErr,
			)
		}
		e.plugins.EmitPaymentRejected(ctx, &claim, err)
		return nil, err
	}

	e.logger.Info("payment applied",
		"principal", claim.Principal,
		"tier", rec.Tier,
		"tx_signature", claim.TxSignature,
	)
	e.plugins.EmitPaymentApplied(ctx, rec, claim.TxSignature)
	return rec, nil
}

func (e *Engine) verifyAndApply(ctx context.Context, claim payment.Claim, now time.Time) (*subscription.Record, error) {
	def, ok := e.catalog.Lookup(claim.TargetTier)
	if !ok {
		return nil, ErrUnknownTier
	}
	if !def.Purchasable() {
		return nil, ErrTierNotPurchasable
	}

	// Self-funding only: no gifting, no third-party top-ups.
	if claim.Payer != claim.Principal {
		return nil, ErrPayerMismatch
	}

	minimum := def.MinimumPayment()
	if claim.Amount.Asset != minimum.Asset || !claim.Amount.AtLeast(minimum) {
		return nil, ErrInsufficientPayment
	}

	if e.verifier == nil {
		return nil, ErrNoChainVerifier
	}

	vctx, cancel := context.WithTimeout(ctx, e.verifyTimeout)
	defer cancel()
	verified, err := e.verifier.VerifyTransfer(vctx, claim.TxSignature, claim.Payer, minimum, e.treasuryAddress)
	if err != nil {
		e.logger.Warn("chain verification error",
			"principal", claim.Principal,
			"tx_signature", claim.TxSignature,
			"error", err,
		)
		return nil, ErrChainVerificationFailed
	}
	if !verified {
		return nil, ErrChainVerificationFailed
	}

	for attempt := 0; attempt < e.casRetryLimit; attempt++ {
		rec, err := e.loadRecord(ctx, claim.Principal)
		if err != nil {
			return nil, err
		}

		work := rec.Clone()
		work.Tier = claim.TargetTier
		work.PeriodStart = now
		work.PeriodEnd = now.Add(def.PeriodLength)
		work.ResetCounters()
		work.Active = true
		work.LastPaymentRef = claim.TxSignature

		swapped, err := e.store.CompareAndSwapRecord(ctx, work, rec.Version)
		if err != nil {
			return nil, err
		}
		if swapped {
			return work, nil
		}
	}

	return nil, ErrConflict
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// loadRecord fetches a principal's record, creating the Free-tier record
// on first sight. A create race resolves by re-reading the winner's row.
func (e *Engine) loadRecord(ctx context.Context, principal string) (*subscription.Record, error) {
	if principal == "" {
		return nil, ErrInvalidPrincipal
	}

	rec, err := e.store.GetRecord(ctx, principal)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	free, ok := e.catalog.Lookup(tier.Free)
	if !ok {
		return nil, ErrUnknownTier
	}

	fresh := subscription.NewFree(principal, free, e.now())
	if err := e.store.CreateRecord(ctx, fresh); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return e.store.GetRecord(ctx, principal)
		}
		return nil, err
	}

	e.logger.Debug("subscription record created",
		"principal", principal,
		"tier", fresh.Tier,
	)
	e.plugins.EmitRecordCreated(ctx, fresh)
	return fresh, nil
}

// rollover advances a lapsed record into the period containing now,
// mutating the working copy only. A lapsed paid tier rolls over as Free;
// period bounds advance by whole periods so boundaries stay aligned.
func rollover(r *subscription.Record, cat *tier.Catalog, now time.Time) (fromTier tier.ID, rolled bool) {
	if !r.Lapsed(now) {
		return "", false
	}

	from := r.Tier
	r.Tier = tier.Free
	def, ok := cat.Lookup(tier.Free)
	if !ok {
		return "", false
	}

	for !now.Before(r.PeriodEnd) {
		r.PeriodStart = r.PeriodEnd
		r.PeriodEnd = r.PeriodEnd.Add(def.PeriodLength)
	}
	r.ResetCounters()
	r.Active = true
	return from, true
}
