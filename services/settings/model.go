package settings

import "time"

// Setting is one row of the panel's key-value configuration table.
type Setting struct {
	Name      string    `gorm:"column:name;primaryKey;size:64"`
	Value     string    `gorm:"column:value;size:255"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Keys read by the settlement engine.
const (
	KeyRebateRate = "rebate_rate"
	KeyRebateMode = "rebate_mode"
)

// Rebate modes.
const (
	ModeEveryOrder = "every_order"
	ModeFirstOrder = "first_order"
)

// RebateSettings is the engine's view of the rebate configuration.
type RebateSettings struct {
	Rate float64
	Mode string
}
