package signature

import "context"

// Store is the signature-ledger contract.
type Store interface {
	// TryReserve atomically inserts the signature if absent. It returns
	// true iff this call performed the insert; under concurrent calls
	// with the same TxSignature exactly one caller observes true.
	TryReserve(ctx context.Context, s *ConsumedSignature) (bool, error)

	// Release removes a reservation after downstream processing fails,
	// so a genuinely failed application does not permanently block a
	// legitimate retry with the same signature. Releasing an absent
	// signature is not an error.
	Release(ctx context.Context, txSignature string) error
}
