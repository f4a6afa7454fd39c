package oracle

import (
	"context"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
	"tradesim/src/repository"
)

// DBOracle serves prices and history from the local candle store. The
// current price of a symbol is the close of its most recent candle.
type DBOracle struct {
	candles *repository.CandleRepository
}

func NewDBOracle(candles *repository.CandleRepository) *DBOracle {
	return &DBOracle{candles: candles}
}

func (o *DBOracle) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	rows, err := o.candles.FindRecent(ctx, symbol, 1)
	if err != nil || len(rows) == 0 {
		return decimal.Zero, ErrPriceUnavailable
	}
	return rows[len(rows)-1].Close, nil
}

func (o *DBOracle) GetHistory(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	rows, err := o.candles.FindRecent(ctx, symbol, limit)
	if err != nil || len(rows) == 0 {
		return nil, ErrPriceUnavailable
	}
	return rows, nil
}
