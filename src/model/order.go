package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeMarket       = "market"
	OrderTypeLimit        = "limit"
	OrderTypeStop         = "stop"
	OrderTypeStopLimit    = "stop_limit"
	OrderTypeOCO          = "oco"
	OrderTypeTrailingStop = "trailing_stop"
)

const (
	OrderStatusPending         = "pending"
	OrderStatusFilled          = "filled"
	OrderStatusPartiallyFilled = "partially_filled"
	OrderStatusCancelled       = "cancelled"
	OrderStatusRejected        = "rejected"
)

// Order is an immutable execution record. Market orders move pending->filled
// within the call that creates them; other types persist as pending and wait
// for a matching pass.
type Order struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        uint             `gorm:"index" json:"user_id"`
	ClientOrderID string           `gorm:"size:60;index" json:"client_order_id,omitempty"`
	Symbol        string           `gorm:"size:20;not null;index" json:"symbol"`
	Side          string           `gorm:"size:10;not null" json:"side"`
	OrderType     string           `gorm:"size:20;not null" json:"order_type"`
	Size          decimal.Decimal  `gorm:"type:numeric(15,6)" json:"size"`
	Price         *decimal.Decimal `gorm:"type:numeric(15,6)" json:"price,omitempty"`
	StopPrice     *decimal.Decimal `gorm:"type:numeric(15,6)" json:"stop_price,omitempty"`
	Status        string           `gorm:"size:50;not null;default:pending;index" json:"status"`
	FilledSize    decimal.Decimal  `gorm:"type:numeric(15,6)" json:"filled_size"`
	AvgFillPrice  *decimal.Decimal `gorm:"type:numeric(15,6)" json:"avg_fill_price,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	FilledAt      *time.Time       `json:"filled_at,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// ValidOrderType reports whether t is one of the supported order types.
func ValidOrderType(t string) bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit,
		OrderTypeOCO, OrderTypeTrailingStop:
		return true
	}
	return false
}

// TerminalStatus reports whether an order can no longer transition.
func TerminalStatus(s string) bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}
