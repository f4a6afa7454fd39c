package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Position is the single open row per (user, symbol). EntryPrice is the
// volume-weighted average over all fills that built the position.
type Position struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	UserID       uint             `gorm:"index:idx_positions_user_symbol" json:"user_id"`
	Symbol       string           `gorm:"size:20;not null;index:idx_positions_user_symbol" json:"symbol"`
	Side         string           `gorm:"size:10;not null" json:"side"`
	Size         decimal.Decimal  `gorm:"type:numeric(15,6)" json:"size"`
	EntryPrice   decimal.Decimal  `gorm:"type:numeric(15,6)" json:"entry_price"`
	CurrentPrice decimal.Decimal  `gorm:"type:numeric(15,6)" json:"current_price"`
	StopLoss     *decimal.Decimal `gorm:"type:numeric(15,6)" json:"stop_loss,omitempty"`
	TakeProfit   *decimal.Decimal `gorm:"type:numeric(15,6)" json:"take_profit,omitempty"`
	RealizedPnl  decimal.Decimal  `gorm:"type:numeric(15,2)" json:"realized_pnl"`
	IsOpen       bool             `gorm:"not null;default:true;index" json:"is_open"`
	OpenedAt     time.Time        `json:"opened_at"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// UnrealizedPnl marks the position to CurrentPrice. Full precision is kept
// for accumulation; round with DisplayPnl for presentation.
func (p *Position) UnrealizedPnl() decimal.Decimal {
	return PnlAt(p.Side, p.EntryPrice, p.CurrentPrice, p.Size)
}

// DisplayPnl is UnrealizedPnl rounded to 2 decimals.
func (p *Position) DisplayPnl() decimal.Decimal {
	return p.UnrealizedPnl().Round(2)
}

// PnlAt computes profit/loss for a fill of the given size against an entry
// price. Buy positions profit when price rises, sell positions when it falls.
func PnlAt(side string, entryPrice, price, size decimal.Decimal) decimal.Decimal {
	if side == SideSell {
		return entryPrice.Sub(price).Mul(size)
	}
	return price.Sub(entryPrice).Mul(size)
}

// OppositeSide returns the side that reduces a position on the given side.
func OppositeSide(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}
