package oracle

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/model"
)

const (
	defaultAlphaVantageBaseURL = "https://www.alphavantage.co"
	defaultRetryAttempts       = 3
	defaultRetryBaseDelay      = 500 * time.Millisecond
	defaultRetryMaxBackoff     = 4 * time.Second
)

type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note,omitempty"`
}

type dailySeriesResponse struct {
	TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
	Note       string                       `json:"Note,omitempty"`
}

// AlphaVantageOracle resolves quotes and daily candle history from the
// Alpha Vantage REST API.
type AlphaVantageOracle struct {
	apiKey  string
	baseURL string
	http    *resty.Client
}

// NewAlphaVantageOracle builds a REST oracle with internal retry. An empty
// baseURL selects the public endpoint.
func NewAlphaVantageOracle(apiKey, baseURL string) *AlphaVantageOracle {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultAlphaVantageBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	client := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		SetTimeout(10 * time.Second)

	return &AlphaVantageOracle{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    client,
	}
}

func (o *AlphaVantageOracle) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var out globalQuoteResponse

	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "GLOBAL_QUOTE",
			"symbol":   symbol,
			"apikey":   o.apiKey,
		}).
		SetResult(&out).
		Get("/query")

	if err != nil || !resp.IsSuccess() {
		logger.WithFields(map[string]interface{}{
			"oracle": "alphavantage",
			"symbol": symbol,
		}).WithError(err).Warn("Failed to fetch global quote")

		return decimal.Zero, ErrPriceUnavailable
	}

	raw, ok := out.GlobalQuote["05. price"]
	if !ok || raw == "" {
		return decimal.Zero, ErrPriceUnavailable
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"oracle": "alphavantage",
			"symbol": symbol,
			"raw":    raw,
		}).WithError(err).Warn("Unparseable quote payload")

		return decimal.Zero, ErrPriceUnavailable
	}

	return price, nil
}

func (o *AlphaVantageOracle) GetHistory(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 50
	}

	var out dailySeriesResponse

	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "TIME_SERIES_DAILY",
			"symbol":   symbol,
			"apikey":   o.apiKey,
		}).
		SetResult(&out).
		Get("/query")

	if err != nil || !resp.IsSuccess() || len(out.TimeSeries) == 0 {
		logger.WithFields(map[string]interface{}{
			"oracle": "alphavantage",
			"symbol": symbol,
		}).WithError(err).Warn("Failed to fetch daily series")

		return nil, ErrPriceUnavailable
	}

	dates := make([]string, 0, len(out.TimeSeries))
	for date := range out.TimeSeries {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	if len(dates) > limit {
		dates = dates[len(dates)-limit:]
	}

	candles := make([]model.Candle, 0, len(dates))
	for _, date := range dates {
		values := out.TimeSeries[date]

		dt, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}

		candle := model.Candle{Symbol: symbol, Datetime: dt.UTC()}
		fields := []struct {
			key    string
			target *decimal.Decimal
		}{
			{"1. open", &candle.Open},
			{"2. high", &candle.High},
			{"3. low", &candle.Low},
			{"4. close", &candle.Close},
			{"5. volume", &candle.Volume},
		}

		valid := true
		for _, f := range fields {
			parsed, err := decimal.NewFromString(values[f.key])
			if err != nil {
				valid = false
				break
			}
			*f.target = parsed
		}
		if !valid {
			continue
		}

		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, ErrPriceUnavailable
	}

	return candles, nil
}
