package oracle

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/model"
	"tradesim/src/utils"
)

// quoteSuffixes are tried in order when splitting a plain concatenated
// symbol like BTCUSDT into a currency pair.
var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "USD", "EUR", "BTC", "ETH"}

// BinanceOracle resolves quotes and candle history from Binance spot
// market data. Only public endpoints are used; no credentials required.
type BinanceOracle struct {
	exchange goex.API
	period   goex.KlinePeriod
}

// NewBinanceOracle creates an oracle backed by the Binance public API,
// serving hourly candles for history queries.
func NewBinanceOracle() *BinanceOracle {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}

	return &BinanceOracle{
		exchange: binance.NewWithConfig(apiConfig),
		period:   goex.KLINE_PERIOD_1H,
	}
}

func (o *BinanceOracle) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	pair := currencyPairFor(symbol)

	ticker, err := o.exchange.GetTicker(pair)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"oracle": "binance",
			"symbol": symbol,
		}).WithError(err).Warn("Failed to fetch ticker")

		return decimal.Zero, ErrPriceUnavailable
	}

	return decimal.NewFromFloat(ticker.Last), nil
}

func (o *BinanceOracle) GetHistory(_ context.Context, symbol string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 200
	}

	pair := currencyPairFor(symbol)

	klines, err := o.exchange.GetKlineRecords(pair, o.period, limit, goex.OptionalParameter{})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"oracle": "binance",
			"symbol": symbol,
		}).WithError(err).Warn("Failed to fetch klines")

		return nil, ErrPriceUnavailable
	}

	candles := make([]model.Candle, 0, len(klines))
	for i := range klines {
		k := klines[i]
		candles = append(candles, model.Candle{
			Symbol:   symbol,
			Datetime: utils.ResetTime(time.Unix(k.Timestamp, 0).UTC(), "hour"),
			Open:     decimal.NewFromFloat(k.Open),
			High:     decimal.NewFromFloat(k.High),
			Low:      decimal.NewFromFloat(k.Low),
			Close:    decimal.NewFromFloat(k.Close),
			Volume:   decimal.NewFromFloat(k.Vol),
		})
	}

	if len(candles) == 0 {
		return nil, ErrPriceUnavailable
	}

	return candles, nil
}

// currencyPairFor splits a concatenated symbol into a goex currency pair,
// defaulting the quote currency to USDT when no known suffix matches.
func currencyPairFor(symbol string) goex.CurrencyPair {
	upper := strings.ToUpper(symbol)
	for _, quote := range quoteSuffixes {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			base := strings.TrimSuffix(upper, quote)
			return goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote})
		}
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: upper}, goex.Currency{Symbol: "USDT"})
}
