package entitle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/payment"
	"github.com/xraph/entitle/tier"
	"github.com/xraph/entitle/types"
)

func proClaim(txSignature string) payment.Claim {
	return payment.Claim{
		Principal:   "wallet-1",
		TargetTier:  tier.Pro,
		TxSignature: txSignature,
		Amount:      types.SOL(50_000_000),
		Payer:       "wallet-1",
	}
}

func TestProcessPaymentUpgrade(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()

	rec, err := eng.ProcessPayment(ctx, proClaim("tx-1"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Tier != tier.Pro {
		t.Errorf("tier = %s, want pro", rec.Tier)
	}
	if rec.MessagesUsed != 0 || rec.PremiumMessagesUsed != 0 {
		t.Error("upgrade must start with zeroed counters")
	}
	if rec.LastPaymentRef != "tx-1" {
		t.Errorf("LastPaymentRef = %q", rec.LastPaymentRef)
	}
	wantEnd := clock.Now().Add(30 * 24 * time.Hour)
	if !rec.PeriodEnd.Equal(wantEnd) {
		t.Errorf("PeriodEnd = %s, want %s", rec.PeriodEnd, wantEnd)
	}

	status, _ := eng.GetStatus(ctx, "wallet-1")
	if !status.Capabilities.CanUsePremium {
		t.Error("Pro should grant premium")
	}
	if !status.Capabilities.Has(tier.FeatureLargeFileUpload) {
		t.Error("Pro should grant large file upload")
	}
}

func TestProcessPaymentRenewalResetsCounters(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()

	upgrade(t, eng, "wallet-1", tier.Pro, types.SOL(50_000_000))
	for i := 0; i < 7; i++ {
		if _, err := eng.TrackUsage(ctx, "wallet-1", false); err != nil {
			t.Fatal(err)
		}
	}

	clock.Advance(15 * 24 * time.Hour)
	rec, err := eng.ProcessPayment(ctx, proClaim("tx-renew"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.MessagesUsed != 0 {
		t.Errorf("renewal must reset counters, used = %d", rec.MessagesUsed)
	}
	if !rec.PeriodStart.Equal(clock.Now()) {
		t.Error("renewal must start a fresh period at payment time")
	}
}

func TestProcessPaymentAmountBoundaries(t *testing.T) {
	// Pro price ◎0.05 with ◎0.0001 tolerance: the floor is inclusive,
	// overpayment is always accepted.
	tests := []struct {
		name     string
		lamports int64
		wantErr  error
	}{
		{"one below tolerance floor", 49_899_999, entitle.ErrInsufficientPayment},
		{"exactly tolerance floor", 49_900_000, nil},
		{"exact price", 50_000_000, nil},
		{"slight overpayment", 50_100_000, nil},
		{"gross overpayment", 500_000_000, nil},
		{"zero", 0, entitle.ErrInsufficientPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _ := newTestEngine(t)

			claim := proClaim("tx-" + tt.name)
			claim.Amount = types.SOL(tt.lamports)

			_, err := eng.ProcessPayment(context.Background(), claim)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessPaymentRejections(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	t.Run("payer mismatch", func(t *testing.T) {
		claim := proClaim("tx-gift")
		claim.Payer = "wallet-2"
		_, err := eng.ProcessPayment(ctx, claim)
		if !errors.Is(err, entitle.ErrPayerMismatch) {
			t.Errorf("got %v, want ErrPayerMismatch", err)
		}
		if !entitle.IsPaymentError(err) {
			t.Error("payer mismatch must classify as a payment rejection")
		}
	})

	t.Run("free tier not purchasable", func(t *testing.T) {
		claim := proClaim("tx-free")
		claim.TargetTier = tier.Free
		if _, err := eng.ProcessPayment(ctx, claim); !errors.Is(err, entitle.ErrTierNotPurchasable) {
			t.Errorf("got %v, want ErrTierNotPurchasable", err)
		}
	})

	t.Run("unknown tier", func(t *testing.T) {
		claim := proClaim("tx-unknown")
		claim.TargetTier = tier.ID("platinum")
		if _, err := eng.ProcessPayment(ctx, claim); !errors.Is(err, entitle.ErrUnknownTier) {
			t.Errorf("got %v, want ErrUnknownTier", err)
		}
	})

	t.Run("wrong asset", func(t *testing.T) {
		claim := proClaim("tx-usdc")
		claim.Amount = types.USDC(50_000_000)
		if _, err := eng.ProcessPayment(ctx, claim); !errors.Is(err, entitle.ErrInsufficientPayment) {
			t.Errorf("got %v, want ErrInsufficientPayment", err)
		}
	})

	t.Run("missing signature", func(t *testing.T) {
		claim := proClaim("")
		_, err := eng.ProcessPayment(ctx, claim)
		var verr payment.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("got %v, want ValidationError", err)
		}
	})

	// None of the rejections above must have upgraded the record.
	status, _ := eng.GetStatus(ctx, "wallet-1")
	if status.Record.Tier != tier.Free {
		t.Errorf("tier after rejections = %s, want free", status.Record.Tier)
	}
}

func TestProcessPaymentReplay(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.ProcessPayment(ctx, proClaim("tx-once")); err != nil {
		t.Fatal(err)
	}

	// Same signature again, even for a different principal and tier.
	second := payment.Claim{
		Principal:   "wallet-2",
		TargetTier:  tier.ProPlus,
		TxSignature: "tx-once",
		Amount:      types.SOL(150_000_000),
		Payer:       "wallet-2",
	}
	_, err := eng.ProcessPayment(ctx, second)
	if !errors.Is(err, entitle.ErrDuplicatePayment) {
		t.Errorf("got %v, want ErrDuplicatePayment", err)
	}
	if !entitle.IsPaymentError(err) {
		t.Error("replay must classify as a payment rejection")
	}
	status, _ := eng.GetStatus(ctx, "wallet-2")
	if status.Record.Tier != tier.Free {
		t.Error("replayed claim must not upgrade anyone")
	}
}

func TestProcessPaymentConcurrentReplay(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var success, duplicate int
	var unexpected []error

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.ProcessPayment(ctx, proClaim("tx-race"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, entitle.ErrDuplicatePayment):
				duplicate++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	if success != 1 || duplicate != callers-1 {
		t.Errorf("success = %d, duplicate = %d, want 1 and %d", success, duplicate, callers-1)
	}
	for _, err := range unexpected {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcessPaymentVerificationFailureReleasesSignature(t *testing.T) {
	var approve bool
	verifier := payment.VerifierFunc(func(ctx context.Context, txSignature, payer string, minAmount types.Money, recipient string) (bool, error) {
		return approve, nil
	})
	eng, _ := newTestEngine(t, entitle.WithChainVerifier(verifier))
	ctx := context.Background()

	if _, err := eng.ProcessPayment(ctx, proClaim("tx-flaky")); !errors.Is(err, entitle.ErrChainVerificationFailed) {
		t.Fatalf("got %v, want ErrChainVerificationFailed", err)
	}

	// The RPC catches up; the same signature must be claimable again.
	approve = true
	rec, err := eng.ProcessPayment(ctx, proClaim("tx-flaky"))
	if err != nil {
		t.Fatalf("retry after release: %v", err)
	}
	if rec.Tier != tier.Pro {
		t.Errorf("tier = %s, want pro", rec.Tier)
	}
}

func TestProcessPaymentVerifierErrorAndTimeout(t *testing.T) {
	t.Run("verifier error", func(t *testing.T) {
		verifier := payment.VerifierFunc(func(ctx context.Context, txSignature, payer string, minAmount types.Money, recipient string) (bool, error) {
			return false, errors.New("rpc: node unavailable")
		})
		eng, _ := newTestEngine(t, entitle.WithChainVerifier(verifier))

		if _, err := eng.ProcessPayment(context.Background(), proClaim("tx-err")); !errors.Is(err, entitle.ErrChainVerificationFailed) {
			t.Errorf("got %v, want ErrChainVerificationFailed", err)
		}
	})

	t.Run("verifier timeout", func(t *testing.T) {
		verifier := payment.VerifierFunc(func(ctx context.Context, txSignature, payer string, minAmount types.Money, recipient string) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		})
		eng, _ := newTestEngine(t,
			entitle.WithChainVerifier(verifier),
			entitle.WithVerifyTimeout(20*time.Millisecond),
		)

		start := time.Now()
		_, err := eng.ProcessPayment(context.Background(), proClaim("tx-slow"))
		if !errors.Is(err, entitle.ErrChainVerificationFailed) {
			t.Errorf("got %v, want ErrChainVerificationFailed", err)
		}
		if time.Since(start) > 2*time.Second {
			t.Error("verification must be cut off by the configured timeout")
		}
	})

	t.Run("no verifier configured", func(t *testing.T) {
		eng, _ := newTestEngine(t, entitle.WithChainVerifier(nil))

		if _, err := eng.ProcessPayment(context.Background(), proClaim("tx-none")); !errors.Is(err, entitle.ErrNoChainVerifier) {
			t.Errorf("got %v, want ErrNoChainVerifier", err)
		}
	})
}

func TestVerifierReceivesClaimDetails(t *testing.T) {
	var gotSig, gotPayer, gotRecipient string
	var gotMin types.Money
	verifier := payment.VerifierFunc(func(ctx context.Context, txSignature, payer string, minAmount types.Money, recipient string) (bool, error) {
		gotSig, gotPayer, gotRecipient, gotMin = txSignature, payer, recipient, minAmount
		return true, nil
	})
	eng, _ := newTestEngine(t, entitle.WithChainVerifier(verifier))

	if _, err := eng.ProcessPayment(context.Background(), proClaim("tx-details")); err != nil {
		t.Fatal(err)
	}
	if gotSig != "tx-details" || gotPayer != "wallet-1" || gotRecipient != "treasury-wallet" {
		t.Errorf("verifier saw sig=%q payer=%q recipient=%q", gotSig, gotPayer, gotRecipient)
	}
	// Verification is against the tolerance floor, not the claim amount.
	if !gotMin.Equal(types.SOL(49_900_000)) {
		t.Errorf("minAmount = %v, want tolerance floor", gotMin)
	}
}
