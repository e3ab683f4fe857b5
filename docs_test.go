package entitle_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/payment"
	"github.com/xraph/entitle/store/memory"
	"github.com/xraph/entitle/tier"
	"github.com/xraph/entitle/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from the package docs
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		verifier := payment.VerifierFunc(func(ctx context.Context, txSignature, payer string, minAmount types.Money, recipient string) (bool, error) {
			return true, nil
		})

		// Create engine with a chain verifier bound to your treasury
		eng := entitle.New(store,
			entitle.WithLogger(slog.Default()),
			entitle.WithChainVerifier(verifier),
			entitle.WithTreasuryAddress("treasury-wallet"),
			entitle.WithUsageBufferConfig(100, 5*time.Second),
		)

		// Start the engine
		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Stop()

		wallet := "docs-example-wallet"

		// Check what a principal can do
		status, err := eng.GetStatus(ctx, wallet)
		if err != nil {
			t.Fatal(err)
		}
		if !status.Capabilities.CanSendMessage {
			t.Fatal("expected fresh record to be able to send messages")
		}

		// Serve the request, then charge quota
		outcome, err := eng.TrackUsage(ctx, wallet, false)
		if err != nil {
			t.Fatal(err)
		}
		if !outcome.Allowed {
			t.Fatal("expected usage to be allowed")
		}

		// Apply a payment the user already made on chain
		rec, err := eng.ProcessPayment(ctx, payment.Claim{
			Principal:   wallet,
			TargetTier:  tier.Pro,
			TxSignature: "docs-example-signature",
			Amount:      entitle.SOL(50_000_000),
			Payer:       wallet,
		})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Tier != tier.Pro {
			t.Fatalf("expected pro tier, got %s", rec.Tier)
		}

		// A transaction signature is accepted at most once, ever
		_, err = eng.ProcessPayment(ctx, payment.Claim{
			Principal:   wallet,
			TargetTier:  tier.Pro,
			TxSignature: "docs-example-signature",
			Amount:      entitle.SOL(50_000_000),
			Payer:       wallet,
		})
		if !errors.Is(err, entitle.ErrDuplicatePayment) {
			t.Fatalf("expected ErrDuplicatePayment, got %v", err)
		}
	})

	// Test integer money arithmetic from the package docs
	t.Run("MoneyExample", func(t *testing.T) {
		price := entitle.SOL(50_000_000)
		tolerance := entitle.Lamports(100_000)

		minimum := price.Subtract(tolerance)
		if minimum.Amount != 49_900_000 {
			t.Fatalf("expected 49_900_000 lamports, got %d", minimum.Amount)
		}
		if !price.AtLeast(minimum) {
			t.Fatal("expected price to satisfy its own minimum")
		}
	})
}
