package oracle

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"tradesim/src/repository"
)

type Config struct {
	Provider        string `envconfig:"ORACLE_PROVIDER" default:"static"`
	AlphaVantageKey string `envconfig:"ALPHAVANTAGE_API_KEY"`
	AlphaVantageURL string `envconfig:"ALPHAVANTAGE_BASE_URL" default:"https://www.alphavantage.co"`
	StreamURL       string `envconfig:"ORACLE_STREAM_URL"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// NewFromConfig builds the configured price oracle. The stream provider
// wraps the static quote table as its fallback so a feed outage degrades to
// the last static fixture instead of hard errors.
func NewFromConfig(config Config) (PriceOracle, error) {
	switch config.Provider {
	case "static":
		return NewStaticOracle(DefaultQuotes()), nil

	case "binance":
		return NewBinanceOracle(), nil

	case "db":
		return NewDBOracle(repository.NewCandleRepository()), nil

	case "alphavantage":
		if config.AlphaVantageKey == "" {
			return nil, fmt.Errorf("alphavantage oracle requires ALPHAVANTAGE_API_KEY")
		}
		return NewAlphaVantageOracle(config.AlphaVantageKey, config.AlphaVantageURL), nil

	case "stream":
		if config.StreamURL == "" {
			return nil, fmt.Errorf("stream oracle requires ORACLE_STREAM_URL")
		}
		return NewStreamOracle(config.StreamURL, NewStaticOracle(DefaultQuotes())), nil

	default:
		return nil, fmt.Errorf("unknown oracle provider %q", config.Provider)
	}
}
