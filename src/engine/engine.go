// Package engine executes orders against the price oracle, mutating the
// ledger and the position book atomically per user.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradesim/src/book"
	"tradesim/src/ledger"
	"tradesim/src/model"
	"tradesim/src/oracle"
	"tradesim/src/repository"
)

// Engine is the order execution engine. One instance serves all users;
// per-user serialization happens through the injected lock registry.
type Engine struct {
	db     *gorm.DB
	oracle oracle.PriceOracle
	locks  *LockRegistry
	now    func() time.Time

	users      *repository.UserRepository
	wallets    *repository.WalletRepository
	positions  *repository.PositionRepository
	orders     *repository.OrderRepository
	exceptions *repository.ExceptionRepository

	// read-side repositories, backed by the read-only connection when one
	// is configured
	readPositions *repository.PositionRepository
	readOrders    *repository.OrderRepository
}

// New wires an engine over the given database connections. readDB may be
// nil, in which case reads go through db as well.
func New(db *gorm.DB, readDB *gorm.DB, priceOracle oracle.PriceOracle, locks *LockRegistry) *Engine {
	if readDB == nil {
		readDB = db
	}

	return &Engine{
		db:     db,
		oracle: priceOracle,
		locks:  locks,
		now:    time.Now,

		users:      repository.NewUserRepository().WithDB(db),
		wallets:    repository.NewWalletRepository().WithDB(db),
		positions:  repository.NewPositionRepository().WithDB(db),
		orders:     repository.NewOrderRepository().WithDB(db),
		exceptions: repository.NewExceptionRepository().WithDB(db),

		readPositions: repository.NewPositionRepository().WithDB(readDB),
		readOrders:    repository.NewOrderRepository().WithDB(readDB),
	}
}

// MarketOrderParams describes a market order to execute immediately.
// StopLoss/TakeProfit, when set, are attached to the position the fill
// leaves open.
type MarketOrderParams struct {
	UserID     uint
	Symbol     string
	Side       string
	Size       decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
}

// PendingOrderParams describes a non-market order to persist for a later
// matching pass.
type PendingOrderParams struct {
	UserID    uint
	Symbol    string
	Side      string
	OrderType string
	Size      decimal.Decimal
	Price     *decimal.Decimal
	StopPrice *decimal.Decimal
}

// ExecutionResult reports what a synchronous fill did.
type ExecutionResult struct {
	Order       *model.Order    `json:"order"`
	Position    *model.Position `json:"position,omitempty"`
	FillPrice   decimal.Decimal `json:"fill_price"`
	RealizedPnl decimal.Decimal `json:"realized_pnl"`
}

// WalletInfo is the wallet plus its display-time mark-to-market projection.
type WalletInfo struct {
	Wallet          *model.Wallet   `json:"wallet"`
	UnrealizedPnl   decimal.Decimal `json:"unrealized_pnl"`
	ProjectedEquity decimal.Decimal `json:"projected_equity"`
	OpenPositions   int             `json:"open_positions"`
}

// PerformanceReport summarizes a user's trading results.
type PerformanceReport struct {
	TotalTrades        int             `json:"total_trades"`
	WinningTrades      int             `json:"winning_trades"`
	LosingTrades       int             `json:"losing_trades"`
	WinRate            decimal.Decimal `json:"win_rate"`
	TotalRealizedPnl   decimal.Decimal `json:"total_realized_pnl"`
	TotalUnrealizedPnl decimal.Decimal `json:"total_unrealized_pnl"`
	OpenPositions      int             `json:"open_positions"`
}

func validSide(side string) bool {
	return side == model.SideBuy || side == model.SideSell
}

// PlaceMarketOrder validates and fills a market order synchronously.
//
// The oracle is consulted before the wallet lock is taken so slow quote I/O
// never blocks other operations on the same user; solvency is re-checked
// under the lock since the price may have moved. All ledger, position and
// order mutations commit in one transaction or not at all.
func (e *Engine) PlaceMarketOrder(ctx context.Context, caller Caller, params MarketOrderParams) (*ExecutionResult, error) {
	if err := e.authorize(ctx, caller, params.UserID); err != nil {
		return nil, err
	}

	if !params.Size.IsPositive() || !validSide(params.Side) || params.Symbol == "" {
		return nil, ErrInvalidOrder
	}

	fillPrice, err := e.oracle.GetPrice(ctx, params.Symbol)
	if err != nil {
		return nil, fmt.Errorf("resolving %s quote: %w", params.Symbol, ErrPriceUnavailable)
	}

	release := e.locks.Acquire(params.UserID)
	defer release()

	return e.fill(ctx, params, fillPrice)
}

// fill runs the reserve -> apply -> settle sequence inside one transaction.
// Caller must hold the user's lock.
func (e *Engine) fill(ctx context.Context, params MarketOrderParams, fillPrice decimal.Decimal) (*ExecutionResult, error) {
	var result *ExecutionResult

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := e.wallets.WithDB(tx)
		positions := e.positions.WithDB(tx)
		orders := e.orders.WithDB(tx)

		wallet, err := wallets.GetByUserID(ctx, params.UserID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return fmt.Errorf("user %d has no wallet: %w", params.UserID, ErrInvalidOrder)
		}

		requiredMargin := ledger.RequiredMargin(params.Size, fillPrice)
		if err := ledger.ReserveMargin(wallet, requiredMargin); err != nil {
			return err
		}

		existing, err := positions.FindOpenByUserAndSymbol(ctx, params.UserID, params.Symbol)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		res := book.ApplyFill(existing, book.Fill{
			UserID: params.UserID,
			Symbol: params.Symbol,
			Side:   params.Side,
			Size:   params.Size,
			Price:  fillPrice,
			At:     now,
		})

		if res.Open != nil {
			if params.StopLoss != nil {
				res.Open.StopLoss = params.StopLoss
			}
			if params.TakeProfit != nil {
				res.Open.TakeProfit = params.TakeProfit
			}
		}

		if res.Closed != nil {
			if err := positions.Save(ctx, res.Closed); err != nil {
				return err
			}
		}
		if res.Open != nil {
			if res.Opened {
				err = positions.Create(ctx, res.Open)
			} else {
				err = positions.Save(ctx, res.Open)
			}
			if err != nil {
				return err
			}
		}

		// Settle the reduced exposure: book the realized P&L and hand back
		// both the gate margin on the reduced slice and the margin that
		// backed its entry notional.
		if res.ReducedSize.IsPositive() {
			ledger.SettleRealizedPnl(wallet, res.RealizedPnl)

			releaseAmount := ledger.RequiredMargin(res.ReducedSize, fillPrice).
				Add(ledger.RequiredMargin(res.ReducedSize, res.ReducedEntry))

			if err := ledger.ReleaseMargin(wallet, releaseAmount); err != nil {
				e.reportInvariant(ctx, tx, "fill", err, map[string]any{
					"user_id": params.UserID,
					"symbol":  params.Symbol,
					"release": releaseAmount.String(),
				})
			}
		}

		ledger.Finalize(wallet)
		if err := wallets.Save(ctx, wallet); err != nil {
			return err
		}

		order := &model.Order{
			UserID:        params.UserID,
			ClientOrderID: uuid.NewString(),
			Symbol:        params.Symbol,
			Side:          params.Side,
			OrderType:     model.OrderTypeMarket,
			Size:          params.Size,
			Status:        model.OrderStatusFilled,
			FilledSize:    params.Size,
			AvgFillPrice:  &fillPrice,
			FilledAt:      &now,
		}
		if err := orders.Create(ctx, order); err != nil {
			return err
		}

		result = &ExecutionResult{
			Order:       order,
			Position:    res.Open,
			FillPrice:   fillPrice,
			RealizedPnl: res.RealizedPnl,
		}

		logger.WithFields(map[string]interface{}{
			"user_id":      params.UserID,
			"symbol":       params.Symbol,
			"side":         params.Side,
			"size":         params.Size,
			"fill_price":   fillPrice,
			"realized_pnl": res.RealizedPnl,
		}).Info("Market order filled")

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ClosePosition fills a market order on the opposite side for the full
// remaining size of the position.
func (e *Engine) ClosePosition(ctx context.Context, caller Caller, userID, positionID uint) (*ExecutionResult, error) {
	if err := e.authorize(ctx, caller, userID); err != nil {
		return nil, err
	}

	position, err := e.positions.FindOpenByID(ctx, userID, positionID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}

	fillPrice, err := e.oracle.GetPrice(ctx, position.Symbol)
	if err != nil {
		return nil, fmt.Errorf("resolving %s quote: %w", position.Symbol, ErrPriceUnavailable)
	}

	release := e.locks.Acquire(userID)
	defer release()

	// Re-read under the lock; a concurrent fill may have closed or resized
	// the position while we were fetching the quote.
	position, err = e.positions.FindOpenByID(ctx, userID, positionID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}

	return e.fill(ctx, MarketOrderParams{
		UserID: userID,
		Symbol: position.Symbol,
		Side:   model.OppositeSide(position.Side),
		Size:   position.Size,
	}, fillPrice)
}

// PlacePendingOrder validates a non-market order and persists it as
// pending. The later matching pass is an external concern.
func (e *Engine) PlacePendingOrder(ctx context.Context, caller Caller, params PendingOrderParams) (*model.Order, error) {
	if err := e.authorize(ctx, caller, params.UserID); err != nil {
		return nil, err
	}

	if !params.Size.IsPositive() || !validSide(params.Side) || params.Symbol == "" {
		return nil, ErrInvalidOrder
	}
	if !model.ValidOrderType(params.OrderType) || params.OrderType == model.OrderTypeMarket {
		return nil, ErrInvalidOrder
	}

	switch params.OrderType {
	case model.OrderTypeLimit:
		if params.Price == nil || !params.Price.IsPositive() {
			return nil, ErrInvalidOrder
		}
	case model.OrderTypeStop, model.OrderTypeTrailingStop:
		if params.StopPrice == nil || !params.StopPrice.IsPositive() {
			return nil, ErrInvalidOrder
		}
	case model.OrderTypeStopLimit, model.OrderTypeOCO:
		if params.Price == nil || !params.Price.IsPositive() ||
			params.StopPrice == nil || !params.StopPrice.IsPositive() {
			return nil, ErrInvalidOrder
		}
	}

	order := &model.Order{
		UserID:        params.UserID,
		ClientOrderID: uuid.NewString(),
		Symbol:        params.Symbol,
		Side:          params.Side,
		OrderType:     params.OrderType,
		Size:          params.Size,
		Price:         params.Price,
		StopPrice:     params.StopPrice,
		Status:        model.OrderStatusPending,
		FilledSize:    decimal.Zero,
	}

	if err := e.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"user_id":    params.UserID,
		"symbol":     params.Symbol,
		"order_type": params.OrderType,
		"order_id":   order.ID,
	}).Info("Pending order placed")

	return order, nil
}

// CancelOrder transitions a pending order to cancelled. Terminal orders
// cannot be cancelled.
func (e *Engine) CancelOrder(ctx context.Context, caller Caller, userID, orderID uint) (*model.Order, error) {
	if err := e.authorize(ctx, caller, userID); err != nil {
		return nil, err
	}

	release := e.locks.Acquire(userID)
	defer release()

	order, err := e.orders.FindByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if model.TerminalStatus(order.Status) {
		return nil, fmt.Errorf("order %d is %s: %w", orderID, order.Status, ErrInvalidOrder)
	}

	if err := e.orders.UpdateStatus(ctx, orderID, model.OrderStatusCancelled); err != nil {
		return nil, err
	}

	order.Status = model.OrderStatusCancelled
	return order, nil
}

// GetWallet returns the wallet with its unrealized P&L projection. The
// projection layers on top of the persisted equity and is not written back.
func (e *Engine) GetWallet(ctx context.Context, caller Caller, userID uint) (*WalletInfo, error) {
	if err := e.authorize(ctx, caller, userID); err != nil {
		return nil, err
	}

	wallet, err := e.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, fmt.Errorf("user %d has no wallet: %w", userID, ErrInvalidOrder)
	}

	open, err := e.readPositions.Search(ctx, userID, repository.PositionFilterOpen)
	if err != nil {
		return nil, err
	}

	unrealized := decimal.Zero
	for i := range open {
		price, err := e.oracle.GetPrice(ctx, open[i].Symbol)
		if err == nil {
			open[i].CurrentPrice = price
		}
		unrealized = unrealized.Add(open[i].UnrealizedPnl())
	}

	return &WalletInfo{
		Wallet:          wallet,
		UnrealizedPnl:   unrealized.Round(2),
		ProjectedEquity: ledger.ProjectedEquity(wallet, unrealized),
		OpenPositions:   len(open),
	}, nil
}

// GetPositions lists the user's positions filtered by open/closed status.
func (e *Engine) GetPositions(ctx context.Context, caller Caller, userID uint, status string) ([]model.Position, error) {
	if err := e.authorize(ctx, caller, userID); err != nil {
		return nil, err
	}
	return e.readPositions.Search(ctx, userID, status)
}

// GetOrders lists the user's orders filtered by status.
func (e *Engine) GetOrders(ctx context.Context, caller Caller, userID uint, status string, limit int) ([]model.Order, error) {
	if err := e.authorize(ctx, caller, userID); err != nil {
		return nil, err
	}
	return e.readOrders.Search(ctx, userID, status, limit)
}

// Performance aggregates closed-trade statistics plus the current
// mark-to-market on open positions.
func (e *Engine) Performance(ctx context.Context, caller Caller, userID uint) (*PerformanceReport, error) {
	if err := e.authorize(ctx, caller, userID); err != nil {
		return nil, err
	}

	closed, err := e.readPositions.Search(ctx, userID, repository.PositionFilterClosed)
	if err != nil {
		return nil, err
	}

	report := &PerformanceReport{
		TotalTrades:        len(closed),
		WinRate:            decimal.Zero,
		TotalRealizedPnl:   decimal.Zero,
		TotalUnrealizedPnl: decimal.Zero,
	}

	for i := range closed {
		report.TotalRealizedPnl = report.TotalRealizedPnl.Add(closed[i].RealizedPnl)
		if closed[i].RealizedPnl.IsPositive() {
			report.WinningTrades++
		}
	}
	report.LosingTrades = report.TotalTrades - report.WinningTrades

	if report.TotalTrades > 0 {
		report.WinRate = decimal.NewFromInt(int64(report.WinningTrades)).
			Div(decimal.NewFromInt(int64(report.TotalTrades))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	open, err := e.readPositions.Search(ctx, userID, repository.PositionFilterOpen)
	if err != nil {
		return nil, err
	}
	for i := range open {
		price, err := e.oracle.GetPrice(ctx, open[i].Symbol)
		if err == nil {
			open[i].CurrentPrice = price
		}
		report.TotalUnrealizedPnl = report.TotalUnrealizedPnl.Add(open[i].UnrealizedPnl())
	}

	report.OpenPositions = len(open)
	report.TotalRealizedPnl = report.TotalRealizedPnl.Round(2)
	report.TotalUnrealizedPnl = report.TotalUnrealizedPnl.Round(2)

	return report, nil
}

// reportInvariant logs an accounting inconsistency and persists it as an
// Exception inside the current transaction so it is auditable.
func (e *Engine) reportInvariant(ctx context.Context, tx *gorm.DB, method string, cause error, extra map[string]any) {
	logger.WithError(cause).WithFields(logger.Fields(extra)).
		Error("Accounting invariant violated")

	contextJSON, _ := json.Marshal(extra)
	exc := &model.Exception{
		Service: "engine",
		Module:  "ledger",
		Method:  method,
		Message: cause.Error(),
		Level:   "error",
		Context: string(contextJSON),
	}
	if err := e.exceptions.WithDB(tx).Create(ctx, exc); err != nil {
		logger.WithError(err).Error("Failed to persist invariant exception")
	}
}
