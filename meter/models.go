// Package meter defines usage metering types: the per-call outcome
// snapshot returned by quota checks and the detailed usage event
// recorded for cost accounting.
package meter

import (
	"time"

	"github.com/xraph/entitle/id"
)

// UsageEvent is a detailed usage record with token counts. Events are
// buffered by the engine and batch-flushed to the store; they feed cost
// accounting and never participate in quota decisions.
type UsageEvent struct {
	ID           id.UsageEventID `json:"id"`
	Principal    string          `json:"principal"`
	Model        string          `json:"model"`
	Premium      bool            `json:"premium"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	Timestamp    time.Time       `json:"timestamp"`
}

// UsageOutcome is the snapshot returned by every quota path so callers
// can render "X used / Y remaining".
type UsageOutcome struct {
	Allowed   bool   `json:"allowed"`
	Premium   bool   `json:"premium"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}
