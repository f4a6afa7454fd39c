package monitor

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod      time.Duration `envconfig:"MONITOR_LOOP_PERIOD" default:"60s"`
	StrategyTimeout time.Duration `envconfig:"MONITOR_STRATEGY_TIMEOUT" default:"30s"`
	HistoryBars     int           `envconfig:"MONITOR_HISTORY_BARS" default:"120"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
