package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/signature"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/tier"
	"github.com/xraph/entitle/types"
)

// ==================== Subscription record models ====================

type recordModel struct {
	grove.BaseModel `grove:"table:entitle_subscriptions"`

	ID                  string    `grove:"id,pk"`
	Principal           string    `grove:"principal"`
	Tier                string    `grove:"tier"`
	PeriodStart         time.Time `grove:"period_start"`
	PeriodEnd           time.Time `grove:"period_end"`
	MessagesUsed        int64     `grove:"messages_used"`
	PremiumMessagesUsed int64     `grove:"premium_messages_used"`
	Active              bool      `grove:"active"`
	LastPaymentRef      string    `grove:"last_payment_ref"`
	Version             int64     `grove:"version"`
	CreatedAt           time.Time `grove:"created_at"`
	UpdatedAt           time.Time `grove:"updated_at"`
}

func toRecordModel(r *subscription.Record) *recordModel {
	return &recordModel{
		ID:                  r.ID.String(),
		Principal:           r.Principal,
		Tier:                string(r.Tier),
		PeriodStart:         r.PeriodStart,
		PeriodEnd:           r.PeriodEnd,
		MessagesUsed:        r.MessagesUsed,
		PremiumMessagesUsed: r.PremiumMessagesUsed,
		Active:              r.Active,
		LastPaymentRef:      r.LastPaymentRef,
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func fromRecordModel(m *recordModel) (*subscription.Record, error) {
	recID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &subscription.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                  recID,
		Principal:           m.Principal,
		Tier:                tier.ID(m.Tier),
		PeriodStart:         m.PeriodStart,
		PeriodEnd:           m.PeriodEnd,
		MessagesUsed:        m.MessagesUsed,
		PremiumMessagesUsed: m.PremiumMessagesUsed,
		Active:              m.Active,
		LastPaymentRef:      m.LastPaymentRef,
		Version:             m.Version,
	}, nil
}

// ==================== Signature models ====================

type signatureModel struct {
	grove.BaseModel `grove:"table:entitle_signatures"`

	TxSignature string    `grove:"tx_signature,pk"`
	ID          string    `grove:"id"`
	Principal   string    `grove:"principal"`
	AppliedAt   time.Time `grove:"applied_at"`
}

func toSignatureModel(c *signature.ConsumedSignature) *signatureModel {
	return &signatureModel{
		TxSignature: c.TxSignature,
		ID:          c.ID.String(),
		Principal:   c.Principal,
		AppliedAt:   c.AppliedAt,
	}
}

// ==================== Usage event models ====================

type usageEventModel struct {
	grove.BaseModel `grove:"table:entitle_usage_events"`

	ID           string    `grove:"id,pk"`
	Principal    string    `grove:"principal"`
	Model        string    `grove:"model"`
	Premium      bool      `grove:"premium"`
	InputTokens  int64     `grove:"input_tokens"`
	OutputTokens int64     `grove:"output_tokens"`
	Timestamp    time.Time `grove:"timestamp"`
}

func toUsageEventModel(e *meter.UsageEvent) *usageEventModel {
	return &usageEventModel{
		ID:           e.ID.String(),
		Principal:    e.Principal,
		Model:        e.Model,
		Premium:      e.Premium,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		Timestamp:    e.Timestamp,
	}
}

func fromUsageEventModel(m *usageEventModel) (*meter.UsageEvent, error) {
	evtID, err := id.ParseUsageEventID(m.ID)
	if err != nil {
		return nil, err
	}

	return &meter.UsageEvent{
		ID:           evtID,
		Principal:    m.Principal,
		Model:        m.Model,
		Premium:      m.Premium,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		Timestamp:    m.Timestamp,
	}, nil
}
