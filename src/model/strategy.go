package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StrategyTypeDCA      = "dca"
	StrategyTypeMomentum = "momentum"
)

// AutomationStrategy is a trading rule a manager runs on behalf of one
// client. Parameters carries strategy-specific settings (e.g. interval_hours
// and last_order_time for DCA).
type AutomationStrategy struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	ManagerID         uint             `gorm:"not null;index" json:"manager_id"`
	ClientID          uint             `gorm:"not null;index" json:"client_id"`
	Name              string           `gorm:"size:100;not null" json:"name"`
	Symbol            string           `gorm:"size:20;not null" json:"symbol"`
	StrategyType      string           `gorm:"size:50;not null" json:"strategy_type"`
	Parameters        map[string]any   `gorm:"type:jsonb;serializer:json" json:"parameters"`
	CapitalAllocation decimal.Decimal  `gorm:"type:numeric(5,2)" json:"capital_allocation"`
	StopLossPct       *decimal.Decimal `gorm:"type:numeric(5,2)" json:"stop_loss_pct,omitempty"`
	TakeProfitPct     *decimal.Decimal `gorm:"type:numeric(5,2)" json:"take_profit_pct,omitempty"`
	MaxDailyLoss      *decimal.Decimal `gorm:"type:numeric(15,2)" json:"max_daily_loss,omitempty"`
	IsActive          bool             `gorm:"not null;default:true;index" json:"is_active"`
	StartDate         *time.Time       `json:"start_date,omitempty"`
	EndDate           *time.Time       `json:"end_date,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`

	Manager *User `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	Client  *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (AutomationStrategy) TableName() string {
	return "automation_strategies"
}

// ActiveAt reports whether the strategy's activity window includes now.
// A nil StartDate/EndDate leaves that edge of the window open.
func (s *AutomationStrategy) ActiveAt(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.StartDate != nil && now.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && !now.Before(*s.EndDate) {
		return false
	}
	return true
}
