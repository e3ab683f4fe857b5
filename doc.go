// Package entitle provides a subscription entitlement and on-chain payment
// verification engine for Go applications.
//
// Entitle is designed as a library, not a service. Import it directly into
// your application and wire it to your chain RPC layer. It provides:
//
//   - A static tier catalog (Free, Pro, Pro+) with per-period message quotas
//   - Atomic quota check-and-increment via optimistic concurrency
//   - Lazy billing-period rollover with paid-tier lapse to Free
//   - Replay-safe payment verification backed by a consumed-signature ledger
//   - A pure feature gate deriving capabilities from record + catalog + clock
//   - Detailed usage events with batched ingestion for cost accounting
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/entitle"
//	    "github.com/xraph/entitle/store/postgres"
//	)
//
//	// Initialize store on an existing grove database
//	store := postgres.New(db)
//
//	// Create engine with a chain verifier bound to your treasury
//	eng := entitle.New(store,
//	    entitle.WithChainVerifier(rpcVerifier),
//	    entitle.WithTreasuryAddress(treasury),
//	)
//
//	// Start the engine (migrates the store, begins background workers)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Every operation keys on a principal: the caller's wallet address. A
// record is created lazily on first sight, on the Free tier.
//
// Check what a principal can do:
//
//	status, err := eng.GetStatus(ctx, wallet)
//	if status.Capabilities.CanSendMessage {
//	    // serve the request, then charge quota
//	    outcome, err := eng.TrackUsage(ctx, wallet, false)
//	}
//
// Apply a payment the user already made on chain:
//
//	rec, err := eng.ProcessPayment(ctx, payment.Claim{
//	    Principal:   wallet,
//	    TargetTier:  tier.Pro,
//	    TxSignature: sig,
//	    Amount:      entitle.SOL(50_000_000),
//	    Payer:       wallet,
//	})
//
// A transaction signature is accepted at most once, ever. Quota denials
// surface as ErrQuotaExceeded with a populated outcome snapshot so the
// caller can render "X of Y used".
//
// All monetary amounts use integer arithmetic in the asset's smallest
// unit (lamports for SOL, micro-units for USDC); there is no
// floating-point money anywhere in the engine.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription record ID
//	uevt_01h2xcejqtf2nbrexx3vqjhp41  // Usage event ID
//	sig_01h455vb4pex5vsknk084sn02q   // Consumed signature ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package entitle
