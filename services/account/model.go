package account

import (
	"time"
)

// User status values as the account subsystem writes them.
const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// User mirrors the panel's users table. The row is owned by the account
// subsystem; the settlement engine writes only rebate_available and
// rebate_total, and the invite registry writes invite_code/invite_used.
type User struct {
	ID              int64      `gorm:"column:id;primaryKey"`
	InviteCode      *string    `gorm:"column:invite_code;size:32;uniqueIndex"`
	InviteLimit     int        `gorm:"column:invite_limit;default:0"`
	InviteUsed      int        `gorm:"column:invite_used;default:0"`
	InvitedBy       int64      `gorm:"column:invited_by;index"`
	RebateAvailable float64    `gorm:"column:rebate_available;type:decimal(20,2);default:0"`
	RebateTotal     float64    `gorm:"column:rebate_total;type:decimal(20,2);default:0"`
	Status          string     `gorm:"column:status;size:16;default:active"`
	Class           int        `gorm:"column:class;default:0"`
	ClassExpireTime *time.Time `gorm:"column:class_expire_time"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Eligible reports whether the user may currently earn commissions: an
// active account holding a paid class that has not expired.
func (u *User) Eligible(now time.Time) bool {
	if u.Status != StatusActive || u.Class <= 0 {
		return false
	}
	return u.ClassExpireTime == nil || u.ClassExpireTime.After(now)
}

// Code returns the canonical invite code, empty when none is assigned.
func (u *User) Code() string {
	if u.InviteCode == nil {
		return ""
	}
	return *u.InviteCode
}
