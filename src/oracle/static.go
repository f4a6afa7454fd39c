package oracle

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

// StaticOracle serves quotes from a fixed in-memory table. It backs local
// development and tests where no market data source is reachable.
type StaticOracle struct {
	mu      sync.RWMutex
	prices  map[string]decimal.Decimal
	history map[string][]model.Candle
}

// DefaultQuotes are the development fixture prices.
func DefaultQuotes() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"EURUSD": decimal.RequireFromString("1.0856"),
		"GBPUSD": decimal.RequireFromString("1.2745"),
		"BTCUSD": decimal.RequireFromString("43250.00"),
		"ETHUSD": decimal.RequireFromString("2650.25"),
		"AAPL":   decimal.RequireFromString("190.50"),
		"GOOGL":  decimal.RequireFromString("140.75"),
		"XAUUSD": decimal.RequireFromString("2034.50"),
		"USOIL":  decimal.RequireFromString("82.30"),
	}
}

// NewStaticOracle returns an oracle preloaded with the given quotes.
// Pass nil to start from DefaultQuotes.
func NewStaticOracle(prices map[string]decimal.Decimal) *StaticOracle {
	if prices == nil {
		prices = DefaultQuotes()
	}
	return &StaticOracle{
		prices:  prices,
		history: make(map[string][]model.Candle),
	}
}

// SetPrice sets or replaces the quote for a symbol.
func (o *StaticOracle) SetPrice(symbol string, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[symbol] = price
}

// RemovePrice deletes the quote for a symbol, making it unavailable.
func (o *StaticOracle) RemovePrice(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.prices, symbol)
}

// SetHistory replaces the candle history for a symbol.
func (o *StaticOracle) SetHistory(symbol string, candles []model.Candle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history[symbol] = candles
}

func (o *StaticOracle) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	price, ok := o.prices[symbol]
	if !ok {
		return decimal.Zero, ErrPriceUnavailable
	}
	return price, nil
}

func (o *StaticOracle) GetHistory(_ context.Context, symbol string, limit int) ([]model.Candle, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	candles, ok := o.history[symbol]
	if !ok || len(candles) == 0 {
		return nil, ErrPriceUnavailable
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]model.Candle, len(candles))
	copy(out, candles)
	return out, nil
}
