package referral

import "time"

// Relation status lifecycle: pending until the invitee's first qualifying
// payment, active afterwards. The transition never reverses.
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

// Relation is the inviter-invitee edge, one row per invitee.
type Relation struct {
	ID               string     `gorm:"column:id;primaryKey;size:32"`
	InviterID        int64      `gorm:"column:inviter_id;index"`
	InviteeID        int64      `gorm:"column:invitee_id;uniqueIndex"`
	InviteCode       string     `gorm:"column:invite_code;size:32"`
	InviteIP         string     `gorm:"column:invite_ip;size:64"`
	Status           string     `gorm:"column:status;size:16;default:pending;index"`
	FirstPaymentType string     `gorm:"column:first_payment_type;size:32"`
	FirstPaymentID   *int64     `gorm:"column:first_payment_id"`
	FirstPaidAt      *time.Time `gorm:"column:first_paid_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (Relation) TableName() string {
	return "referral_relations"
}
