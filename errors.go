package entitle

import "errors"

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrAlreadyExists = errors.New("entitle: already exists")
	ErrInvalidInput  = errors.New("entitle: invalid input")
	ErrForbidden     = errors.New("entitle: forbidden")

	// Quota errors. These are expected, frequent business outcomes
	// ("upgrade or wait"), never system faults.
	ErrQuotaExceeded  = errors.New("entitle: quota exceeded")
	ErrTierIneligible = errors.New("entitle: tier not eligible for premium usage")

	// Payment validation errors. Surfaced as a rejected payment with a
	// specific reason; ErrDuplicatePayment may indicate a replay attempt.
	ErrDuplicatePayment        = errors.New("entitle: payment signature already consumed")
	ErrInsufficientPayment     = errors.New("entitle: payment amount below tier price")
	ErrPayerMismatch           = errors.New("entitle: payer does not match principal")
	ErrChainVerificationFailed = errors.New("entitle: on-chain transfer verification failed")
	ErrTierNotPurchasable      = errors.New("entitle: tier cannot be purchased")

	// Consistency errors. Transient; the caller should retry the whole
	// operation. CAS guarantees nothing was partially applied.
	ErrConflict = errors.New("entitle: concurrent update conflict")

	// Record errors
	ErrRecordNotFound = errors.New("entitle: subscription record not found")

	// Programming/data errors. Fatal to the single request, never
	// silently defaulted.
	ErrUnknownTier      = errors.New("entitle: unknown tier id")
	ErrInvalidPrincipal = errors.New("entitle: invalid principal")

	// Metering errors
	ErrUsageBufferFull = errors.New("entitle: usage event buffer full")

	// Engine wiring errors
	ErrNoChainVerifier = errors.New("entitle: no chain verifier configured")

	// Store errors
	ErrStoreClosed = errors.New("entitle: store is closed")
)

// IsQuotaError returns true if the error is an expected quota outcome.
// Callers and metrics should not alert on these.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrTierIneligible)
}

// IsPaymentError returns true if the error is a payment validation
// rejection rather than a genuine fault.
func IsPaymentError(err error) bool {
	return errors.Is(err, ErrDuplicatePayment) ||
		errors.Is(err, ErrInsufficientPayment) ||
		errors.Is(err, ErrPayerMismatch) ||
		errors.Is(err, ErrChainVerificationFailed) ||
		errors.Is(err, ErrTierNotPurchasable)
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUsageBufferFull)
}
