package mongo

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

	ID                  string    `grove:"id,pk"                 bson:"_id"`
	Principal           string    `grove:"principal"             bson:"principal"`
	Tier                string    `grove:"tier"                  bson:"tier"`
	PeriodStart         time.Time `grove:"period_start"          bson:"period_start"`
	PeriodEnd           time.Time `grove:"period_end"            bson:"period_end"`
	MessagesUsed        int64     `grove:"messages_used"         bson:"messages_used"`
	PremiumMessagesUsed int64     `grove:"premium_messages_used" bson:"premium_messages_used"`
	Active              bool      `grove:"active"                bson:"active"`
	LastPaymentRef      string    `grove:"last_payment_ref"      bson:"last_payment_ref"`
	Version             int64     `grove:"version"               bson:"version"`
	CreatedAt           time.Time `grove:"created_at"            bson:"created_at"`
	UpdatedAt           time.Time `grove:"updated_at"            bson:"updated_at"`
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

// The transaction signature itself is the _id, so the insert races
// directly on the primary index.
type signatureModel struct {
	grove.BaseModel `grove:"table:entitle_signatures"`

	TxSignature string    `grove:"tx_signature,pk" bson:"_id"`
	ID          string    `grove:"id"              bson:"id"`
	Principal   string    `grove:"principal"       bson:"principal"`
	AppliedAt   time.Time `grove:"applied_at"      bson:"applied_at"`
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

	ID           string    `grove:"id,pk"         bson:"_id"`
	Principal    string    `grove:"principal"     bson:"principal"`
	Model        string    `grove:"model"         bson:"model"`
	Premium      bool      `grove:"premium"       bson:"premium"`
	InputTokens  int64     `grove:"input_tokens"  bson:"input_tokens"`
	OutputTokens int64     `grove:"output_tokens" bson:"output_tokens"`
	Timestamp    time.Time `grove:"timestamp"     bson:"timestamp"`
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
