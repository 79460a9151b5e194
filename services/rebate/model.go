package rebate

import (
	"time"

	"gorm.io/datatypes"
)

// Source types supplied by the payment collaborator.
const (
	SourcePurchase = "purchase"
	SourceRecharge = "recharge"
	SourceManual   = "manual"
)

// Every settled row is written confirmed; the ledger is append-only and
// rows are never updated or deleted afterwards.
const StatusConfirmed = "confirmed"

// Transaction is one ledger entry: a settlement decision that credited (or,
// for signed manual adjustments, debited) an inviter's balance.
//
// The partial unique index over (source_type, source_id) where amount > 0 is
// the storage-level idempotency gate: two concurrent settlements of the same
// payment event cannot both insert a positive row. Zero-sum informational
// rows stay outside the index.
type Transaction struct {
	ID         string         `gorm:"column:id;primaryKey;size:32"`
	InviterID  int64          `gorm:"column:inviter_id;index"`
	ReferralID *string        `gorm:"column:referral_id;size:32;index"`
	InviteeID  *int64         `gorm:"column:invitee_id;index"`
	SourceType string         `gorm:"column:source_type;size:32;index:idx_rebate_source,unique,where:amount > 0"`
	SourceID   *int64         `gorm:"column:source_id;index:idx_rebate_source,unique,where:amount > 0"`
	TradeNo    *string        `gorm:"column:trade_no;size:64"`
	EventType  string         `gorm:"column:event_type;size:32"`
	Amount     float64        `gorm:"column:amount;type:decimal(20,2)"`
	Status     string         `gorm:"column:status;size:16"`
	Remark     string         `gorm:"column:remark;size:255"`
	Metadata   datatypes.JSON `gorm:"column:metadata"`
	CreatedAt  time.Time      `gorm:"column:created_at;index"`
}

func (Transaction) TableName() string {
	return "rebate_transactions"
}

// AwardParams describes one payment event offered for settlement.
type AwardParams struct {
	InviteeID  int64
	Amount     float64
	SourceType string
	SourceID   *int64
	TradeNo    string
	EventType  string
}

// SourceSummary is one row of the admin aggregate report.
type SourceSummary struct {
	SourceType string  `json:"source_type"`
	Entries    int64   `json:"entries"`
	Total      float64 `json:"total"`
}
