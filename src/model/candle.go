package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar of price history, used by the strategy monitor to
// derive indicator signals.
type Candle struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Symbol   string          `gorm:"size:20;not null;uniqueIndex:idx_candles_symbol_datetime" json:"symbol"`
	Datetime time.Time       `gorm:"not null;uniqueIndex:idx_candles_symbol_datetime" json:"datetime"`
	Open     decimal.Decimal `gorm:"type:numeric(15,6)" json:"open"`
	High     decimal.Decimal `gorm:"type:numeric(15,6)" json:"high"`
	Low      decimal.Decimal `gorm:"type:numeric(15,6)" json:"low"`
	Close    decimal.Decimal `gorm:"type:numeric(15,6)" json:"close"`
	Volume   decimal.Decimal `gorm:"type:numeric(20,8)" json:"volume"`
}

func (Candle) TableName() string {
	return "candles"
}

// Closes extracts the close series in chronological order.
func Closes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}
