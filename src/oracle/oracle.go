package oracle

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

// ErrPriceUnavailable is returned when no quote exists for a symbol. The
// failure is retryable; callers must not treat it as fatal outside the
// synchronous order path.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceOracle supplies current prices and candle history for symbols. The
// engine and the strategy monitor are decoupled from any specific market
// data source through this interface.
type PriceOracle interface {
	// GetPrice resolves the current price for a symbol, or ErrPriceUnavailable.
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetHistory returns up to limit recent candles for a symbol in ascending
	// chronological order.
	GetHistory(ctx context.Context, symbol string, limit int) ([]model.Candle, error)
}
