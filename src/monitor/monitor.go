// Package monitor runs the automation strategies and the stop-loss /
// take-profit sweep on a fixed cadence. A single failing strategy never
// stops the pass; failures are logged and the loop moves on.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradesim/src/engine"
	"tradesim/src/model"
	"tradesim/src/oracle"
	"tradesim/src/repository"
	"tradesim/src/risk"
	"tradesim/src/signals"
)

// Indicator settings for the momentum strategy.
const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

var (
	rsiOversold   = decimal.NewFromInt(30)
	rsiOverbought = decimal.NewFromInt(70)
	hundred       = decimal.NewFromInt(100)
)

// Monitor evaluates active strategies and sweeps protective exits. Orders
// go through the execution engine as the system caller, so they obey the
// same solvency and locking rules as user orders.
type Monitor struct {
	config Config
	engine *engine.Engine
	oracle oracle.PriceOracle
	sizing risk.ProfileSizeConfig
	now    func() time.Time

	strategies *repository.StrategyRepository
	positions  *repository.PositionRepository
	wallets    *repository.WalletRepository
	users      *repository.UserRepository
	candles    *repository.CandleRepository
}

func New(db *gorm.DB, eng *engine.Engine, priceOracle oracle.PriceOracle, config Config) *Monitor {
	return &Monitor{
		config: config,
		engine: eng,
		oracle: priceOracle,
		sizing: risk.DefaultProfileSizeConfig(),
		now:    time.Now,

		strategies: repository.NewStrategyRepository().WithDB(db),
		positions:  repository.NewPositionRepository().WithDB(db),
		wallets:    repository.NewWalletRepository().WithDB(db),
		users:      repository.NewUserRepository().WithDB(db),
		candles:    repository.NewCandleRepository().WithDB(db),
	}
}

// StartLoop blocks running passes until ctx is cancelled.
func (m *Monitor) StartLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.config.LoopPeriod)
	defer ticker.Stop()

	logger.WithField("loop_period", m.config.LoopPeriod).Info("Strategy monitor started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Strategy monitor stopped")
			return nil

		case <-ticker.C:
			m.RunPass(ctx)
		}
	}
}

// RunPass evaluates every active strategy once, then sweeps stop-loss and
// take-profit levels across all open positions.
func (m *Monitor) RunPass(ctx context.Context) {
	now := m.now().UTC()

	strategies, err := m.strategies.FindActive(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load active strategies")
	} else {
		for i := range strategies {
			strategy := &strategies[i]
			if !strategy.ActiveAt(now) {
				continue
			}

			strategyCtx, cancel := context.WithTimeout(ctx, m.config.StrategyTimeout)
			err := m.runStrategy(strategyCtx, strategy, now)
			cancel()

			if err != nil {
				logger.WithError(err).WithFields(map[string]interface{}{
					"strategy_id":   strategy.ID,
					"strategy_type": strategy.StrategyType,
					"client_id":     strategy.ClientID,
					"symbol":        strategy.Symbol,
				}).Error("Strategy evaluation failed")
			}
		}
	}

	m.sweepProtectiveExits(ctx)
}

func (m *Monitor) runStrategy(ctx context.Context, strategy *model.AutomationStrategy, now time.Time) error {
	switch strategy.StrategyType {
	case model.StrategyTypeDCA:
		return m.runDCA(ctx, strategy, now)
	case model.StrategyTypeMomentum:
		return m.runMomentum(ctx, strategy)
	default:
		return fmt.Errorf("unknown strategy type %q", strategy.StrategyType)
	}
}

// runDCA buys a fixed size whenever interval_hours have elapsed since the
// last automated order. The last order time persists inside the strategy's
// parameters so restarts do not double-buy.
func (m *Monitor) runDCA(ctx context.Context, strategy *model.AutomationStrategy, now time.Time) error {
	size, err := m.orderSize(ctx, strategy)
	if err != nil {
		return fmt.Errorf("dca sizing: %w", err)
	}

	intervalHours, err := paramDecimal(strategy.Parameters, "interval_hours")
	if err != nil || !intervalHours.IsPositive() {
		intervalHours = decimal.NewFromInt(24)
	}
	interval := time.Duration(intervalHours.InexactFloat64() * float64(time.Hour))

	if last, ok := paramTime(strategy.Parameters, "last_order_time"); ok {
		if now.Sub(last) < interval {
			return nil
		}
	}

	if err := m.placeOrder(ctx, strategy, model.SideBuy, size); err != nil {
		return err
	}

	if strategy.Parameters == nil {
		strategy.Parameters = map[string]any{}
	}
	strategy.Parameters["last_order_time"] = now.Format(time.RFC3339)
	return m.strategies.Save(ctx, strategy)
}

// runMomentum trades indicator signals on the strategy's symbol: an
// oversold RSI or a bullish MACD opens a long, an overbought RSI exits it.
func (m *Monitor) runMomentum(ctx context.Context, strategy *model.AutomationStrategy) error {
	size, err := m.orderSize(ctx, strategy)
	if err != nil {
		return fmt.Errorf("momentum sizing: %w", err)
	}

	history, err := m.oracle.GetHistory(ctx, strategy.Symbol, m.config.HistoryBars)
	if err != nil {
		return fmt.Errorf("loading %s history: %w", strategy.Symbol, err)
	}

	// cache the bars so the db oracle can serve them
	if err := m.candles.UpsertBatch(ctx, history); err != nil {
		logger.WithError(err).WithField("symbol", strategy.Symbol).
			Warn("Failed to cache candle history")
	}

	closes := model.Closes(history)

	rsi, err := signals.RSI(closes, rsiPeriod)
	if err != nil {
		return fmt.Errorf("rsi: %w", err)
	}

	open, err := m.positions.FindOpenByUserAndSymbol(ctx, strategy.ClientID, strategy.Symbol)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"strategy_id": strategy.ID,
		"symbol":      strategy.Symbol,
		"rsi":         rsi,
	}).Debug("Momentum signals evaluated")

	switch {
	case rsi.LessThan(rsiOversold):
		if open != nil {
			return nil
		}
		return m.placeOrder(ctx, strategy, model.SideBuy, size)

	case rsi.GreaterThan(rsiOverbought):
		if open == nil || open.Side != model.SideBuy {
			return nil
		}
		_, err := m.engine.ClosePosition(ctx, engine.SystemCaller, strategy.ClientID, open.ID)
		return err

	default:
		macd, err := signals.MACD(closes, macdFast, macdSlow, macdSignal)
		if err != nil {
			return fmt.Errorf("macd: %w", err)
		}
		if macd.Bullish() && open == nil {
			return m.placeOrder(ctx, strategy, model.SideBuy, size)
		}
		return nil
	}
}

// orderSize resolves how much a strategy order trades: an explicit size
// parameter wins, otherwise the capital allocation percentage is converted
// into a size at the current price, scaled by the client's risk profile.
func (m *Monitor) orderSize(ctx context.Context, strategy *model.AutomationStrategy) (decimal.Decimal, error) {
	if size, err := paramDecimal(strategy.Parameters, "size"); err == nil {
		if !size.IsPositive() {
			return decimal.Zero, fmt.Errorf("size parameter must be positive, got %s", size)
		}
		return size, nil
	}

	if !strategy.CapitalAllocation.IsPositive() {
		return decimal.Zero, fmt.Errorf("strategy %d has neither a size parameter nor a capital allocation", strategy.ID)
	}

	wallet, err := m.wallets.GetByUserID(ctx, strategy.ClientID)
	if err != nil {
		return decimal.Zero, err
	}
	if wallet == nil {
		return decimal.Zero, fmt.Errorf("client %d has no wallet", strategy.ClientID)
	}

	profile := model.RiskProfileModerate
	client, err := m.users.FindByID(ctx, strategy.ClientID)
	if err != nil {
		return decimal.Zero, err
	}
	if client != nil && client.RiskProfile != "" {
		profile = client.RiskProfile
	}

	price, err := m.oracle.GetPrice(ctx, strategy.Symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolving %s quote: %w", strategy.Symbol, err)
	}

	size := risk.SizeForAllocation(wallet.Equity, strategy.CapitalAllocation, price, profile, m.sizing)
	if !size.IsPositive() {
		return decimal.Zero, fmt.Errorf("allocation of %s%% yields no tradable size", strategy.CapitalAllocation)
	}
	return size, nil
}

// placeOrder submits a market order for the strategy's client, deriving
// protective levels from the strategy's percentage settings.
func (m *Monitor) placeOrder(ctx context.Context, strategy *model.AutomationStrategy, side string, size decimal.Decimal) error {
	params := engine.MarketOrderParams{
		UserID: strategy.ClientID,
		Symbol: strategy.Symbol,
		Side:   side,
		Size:   size,
	}

	price, err := m.oracle.GetPrice(ctx, strategy.Symbol)
	if err != nil {
		return fmt.Errorf("resolving %s quote: %w", strategy.Symbol, err)
	}
	params.StopLoss = protectiveLevel(price, side, strategy.StopLossPct, true)
	params.TakeProfit = protectiveLevel(price, side, strategy.TakeProfitPct, false)

	res, err := m.engine.PlaceMarketOrder(ctx, engine.SystemCaller, params)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"strategy_id": strategy.ID,
		"client_id":   strategy.ClientID,
		"symbol":      strategy.Symbol,
		"side":        side,
		"size":        size,
		"fill_price":  res.FillPrice,
	}).Info("Strategy order filled")

	return nil
}

// protectiveLevel turns a percentage distance from price into an absolute
// stop-loss (isStop) or take-profit level for the given side.
func protectiveLevel(price decimal.Decimal, side string, pct *decimal.Decimal, isStop bool) *decimal.Decimal {
	if pct == nil || !pct.IsPositive() {
		return nil
	}

	delta := price.Mul(pct.DivRound(hundred, 12))

	// a long's stop sits below price and its target above; shorts mirror
	below := isStop
	if side == model.SideSell {
		below = !below
	}

	level := price.Add(delta)
	if below {
		level = price.Sub(delta)
	}
	return &level
}

// sweepProtectiveExits refreshes the mark price on every open position
// platform-wide, then closes any whose stop-loss or take-profit level the
// refreshed price has crossed.
func (m *Monitor) sweepProtectiveExits(ctx context.Context) {
	open, err := m.positions.FindAllOpen(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load open positions for exit sweep")
		return
	}

	for i := range open {
		position := &open[i]

		price, err := m.oracle.GetPrice(ctx, position.Symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", position.Symbol).
				Warn("No quote for exit sweep, skipping symbol")
			continue
		}

		position.CurrentPrice = price
		if err := m.positions.Save(ctx, position); err != nil {
			logger.WithError(err).WithField("position_id", position.ID).
				Error("Failed to persist refreshed mark price")
			continue
		}

		reason := exitReason(position, price)
		if reason == "" {
			continue
		}

		res, err := m.engine.ClosePosition(ctx, engine.SystemCaller, position.UserID, position.ID)
		if err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"position_id": position.ID,
				"user_id":     position.UserID,
				"symbol":      position.Symbol,
			}).Error("Failed to close position on protective exit")
			continue
		}

		logger.WithFields(map[string]interface{}{
			"position_id":  position.ID,
			"user_id":      position.UserID,
			"symbol":       position.Symbol,
			"reason":       reason,
			"price":        price,
			"realized_pnl": res.RealizedPnl,
		}).Info("Protective exit executed")
	}
}

// exitReason reports which protective level the price has crossed, or ""
// when the position should stay open.
func exitReason(position *model.Position, price decimal.Decimal) string {
	long := position.Side == model.SideBuy

	if position.StopLoss != nil {
		if long && price.LessThanOrEqual(*position.StopLoss) {
			return "stop_loss"
		}
		if !long && price.GreaterThanOrEqual(*position.StopLoss) {
			return "stop_loss"
		}
	}

	if position.TakeProfit != nil {
		if long && price.GreaterThanOrEqual(*position.TakeProfit) {
			return "take_profit"
		}
		if !long && price.LessThanOrEqual(*position.TakeProfit) {
			return "take_profit"
		}
	}

	return ""
}

// paramDecimal reads a numeric strategy parameter, accepting the JSON
// number and string encodings.
func paramDecimal(params map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := params[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("missing parameter %q", key)
	}

	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("parameter %q has unsupported type %T", key, raw)
	}
}

// paramTime reads an RFC3339 timestamp parameter.
func paramTime(params map[string]any, key string) (time.Time, bool) {
	raw, ok := params[key]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
