// Package signature defines the consumed-signature ledger: the
// append-only set of payment transaction identifiers that have already
// been applied, used by the payment verifier for replay prevention.
package signature

import (
	"time"

	"github.com/xraph/entitle/id"
)

// ConsumedSignature is one row per accepted payment transaction.
// TxSignature appears at most once across the whole ledger; a second
// claim with the same signature is rejected regardless of content.
type ConsumedSignature struct {
	ID          id.SignatureID `json:"id"`
	TxSignature string         `json:"tx_signature"` // chain transaction identifier, unique
	Principal   string         `json:"principal"`
	AppliedAt   time.Time      `json:"applied_at"`
}

// New returns a reservation row for a transaction signature.
func New(txSignature, principal string, now time.Time) *ConsumedSignature {
	return &ConsumedSignature{
		ID:          id.NewSignatureID(),
		TxSignature: txSignature,
		Principal:   principal,
		AppliedAt:   now,
	}
}
