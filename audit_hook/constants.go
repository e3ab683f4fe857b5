package audithook

// Action constants for audit events.
const (
	// Record actions
	ActionRecordCreated    = "record.created"
	ActionPeriodRolledOver = "period.rolled_over"
	ActionUsageReset       = "usage.reset"

	// Usage actions
	ActionUsageTracked  = "usage.tracked"
	ActionUsageFlushed  = "usage.flushed"
	ActionQuotaExceeded = "quota.exceeded"

	// Payment actions
	ActionPaymentApplied  = "payment.applied"
	ActionPaymentRejected = "payment.rejected"
	ActionReplayDetected  = "replay.detected"
)

// Resource constants for audit events.
const (
	ResourceRecord  = "record"
	ResourceUsage   = "usage"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryUsage        = "usage"
	CategoryPayment      = "payment"
	CategorySecurity     = "security"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
