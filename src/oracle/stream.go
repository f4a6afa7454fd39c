package oracle

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/model"
)

const (
	streamReconnectDelay = 5 * time.Second
	streamReadTimeout    = 90 * time.Second
)

// tickMessage is one trade tick on the upstream feed.
type tickMessage struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// StreamOracle keeps a last-price cache fed by a websocket ticker stream.
// GetPrice serves from the cache; history queries are delegated to the
// fallback oracle since the stream carries no candles.
type StreamOracle struct {
	url      string
	fallback PriceOracle

	mu     sync.RWMutex
	prices map[string]decimal.Decimal

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStreamOracle creates the oracle and starts consuming the feed in the
// background. Call Close at shutdown.
func NewStreamOracle(url string, fallback PriceOracle) *StreamOracle {
	ctx, cancel := context.WithCancel(context.Background())

	o := &StreamOracle{
		url:      url,
		fallback: fallback,
		prices:   make(map[string]decimal.Decimal),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go o.run(ctx)

	return o
}

// Close stops the background consumer and waits for it to exit.
func (o *StreamOracle) Close() {
	o.cancel()
	<-o.done
}

func (o *StreamOracle) run(ctx context.Context) {
	defer close(o.done)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := o.consume(ctx); err != nil && ctx.Err() == nil {
			logger.WithFields(map[string]interface{}{
				"oracle": "stream",
				"url":    o.url,
			}).WithError(err).Warn("Ticker stream dropped, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(streamReconnectDelay):
		}
	}
}

func (o *StreamOracle) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, o.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.WithField("url", o.url).Info("Ticker stream connected")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			return err
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var tick tickMessage
		if err := json.Unmarshal(payload, &tick); err != nil {
			logger.WithError(err).Debug("Skipping malformed tick")
			continue
		}

		price, err := decimal.NewFromString(tick.Price)
		if err != nil || tick.Symbol == "" {
			continue
		}

		o.mu.Lock()
		o.prices[tick.Symbol] = price
		o.mu.Unlock()
	}
}

func (o *StreamOracle) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	o.mu.RLock()
	price, ok := o.prices[symbol]
	o.mu.RUnlock()

	if ok {
		return price, nil
	}

	if o.fallback != nil {
		return o.fallback.GetPrice(ctx, symbol)
	}

	return decimal.Zero, ErrPriceUnavailable
}

func (o *StreamOracle) GetHistory(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	if o.fallback != nil {
		return o.fallback.GetHistory(ctx, symbol, limit)
	}
	return nil, ErrPriceUnavailable
}
