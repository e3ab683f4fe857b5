// Package payment defines the payment claim submitted for verification
// and the external chain-verification capability it is checked against.
//
// The engine only verifies and consumes payment claims; it never
// initiates transfers, and the cryptographic verification itself is an
// external capability injected at wiring time.
package payment

import (
	"context"

	"github.com/xraph/entitle/tier"
	"github.com/xraph/entitle/types"
)

// Claim is the transient input to payment verification. It is validated
// and then consumed; it is never persisted as-is (only the signature
// reservation and the updated subscription record are).
type Claim struct {
	Principal   string      `json:"principal"`
	TargetTier  tier.ID     `json:"target_tier"`
	TxSignature string      `json:"tx_signature"`
	Amount      types.Money `json:"amount"`
	Payer       string      `json:"payer"`
}

// Validate checks the claim for structural completeness. Business
// validation (tier resolution, pricing, replay) happens in the engine.
func (c Claim) Validate() error {
	if c.Principal == "" {
		return validationErr("principal", "must not be empty")
	}
	if c.TxSignature == "" {
		return validationErr("tx_signature", "must not be empty")
	}
	if c.Payer == "" {
		return validationErr("payer", "must not be empty")
	}
	if c.Amount.IsNegative() {
		return validationErr("amount", "must not be negative")
	}
	return nil
}

// ChainVerifier asks the blockchain/RPC layer whether a transfer
// matching the reserved claim exists: signature txSignature, funded by
// payer, of at least minAmount, to recipient. Implemented outside this
// core.
type ChainVerifier interface {
	VerifyTransfer(ctx context.Context, txSignature, payer string, minAmount types.Money, recipient string) (bool, error)
}

// VerifierFunc is an adapter to use a plain function as a ChainVerifier.
type VerifierFunc func(ctx context.Context, txSignature, payer string, minAmount types.Money, recipient string) (bool, error)

// VerifyTransfer implements ChainVerifier.
func (f VerifierFunc) VerifyTransfer(ctx context.Context, txSignature, payer string, minAmount types.Money, recipient string) (bool, error) {
	return f(ctx, txSignature, payer, minAmount, recipient)
}
