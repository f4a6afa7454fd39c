package engine_test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradesim/src/engine"
	"tradesim/src/ledger"
	"tradesim/src/model"
	"tradesim/src/oracle"
	"tradesim/src/repository"
)

// helper to create a new in memory gorm DB and migrate schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in memory db: %v", err)
	}

	// sqlite allows a single writer; funnel everything through one
	// connection so engine-level locking is what serializes, not sqlite
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.Position{},
		&model.Order{},
		&model.Exception{},
	); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}

	return db
}

func seedTrader(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()

	user := &model.User{Email: email, Role: model.RoleTrader}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(model.NewWallet(user.ID)).Error)
	return user
}

func newTestEngine(t *testing.T, db *gorm.DB, quotes map[string]decimal.Decimal) (*engine.Engine, *oracle.StaticOracle) {
	t.Helper()

	static := oracle.NewStaticOracle(quotes)
	return engine.New(db, nil, static, engine.NewLockRegistry()), static
}

func loadWallet(t *testing.T, db *gorm.DB, userID uint) *model.Wallet {
	t.Helper()

	wallet, err := repository.NewWalletRepository().WithDB(db).GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, wallet)
	return wallet
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dptr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func requireDec(t *testing.T, want string, got decimal.Decimal, what string) {
	t.Helper()
	require.Truef(t, got.Equal(d(want)), "%s: want %s, got %s", what, want, got)
}

func asCaller(user *model.User) engine.Caller {
	return engine.Caller{UserID: user.ID, Role: user.Role}
}

func TestPlaceMarketOrderOpensPosition(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "open@test.local")
	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	res, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID:     user.ID,
		Symbol:     "EURUSD",
		Side:       model.SideBuy,
		Size:       d("10"),
		StopLoss:   dptr("90"),
		TakeProfit: dptr("120"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Position)

	requireDec(t, "100", res.FillPrice, "fill price")
	requireDec(t, "10", res.Position.Size, "position size")
	requireDec(t, "100", res.Position.EntryPrice, "entry price")
	require.True(t, res.Position.IsOpen)
	require.NotNil(t, res.Position.StopLoss)
	requireDec(t, "90", *res.Position.StopLoss, "stop loss")
	require.NotNil(t, res.Position.TakeProfit)
	requireDec(t, "120", *res.Position.TakeProfit, "take profit")

	require.Equal(t, model.OrderStatusFilled, res.Order.Status)
	require.NotEmpty(t, res.Order.ClientOrderID)
	require.NotNil(t, res.Order.FilledAt)

	// 1% of 10 * 100 = 10 reserved
	wallet := loadWallet(t, db, user.ID)
	requireDec(t, "10000", wallet.Balance, "balance")
	requireDec(t, "10", wallet.MarginUsed, "margin used")
	requireDec(t, "9990", wallet.FreeMargin, "free margin")
	requireDec(t, "10010", wallet.Equity, "equity")
}

func TestPlaceMarketOrderInsufficientMargin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "poor@test.local")
	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{"BTCUSD": d("50000")})

	// required margin 1% of 2100 * 50000 = 1050000 > 10000 free
	_, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID,
		Symbol: "BTCUSD",
		Side:   model.SideBuy,
		Size:   d("2100"),
	})
	require.ErrorIs(t, err, engine.ErrInsufficientMargin)

	// rejection mutates nothing
	wallet := loadWallet(t, db, user.ID)
	requireDec(t, "10000", wallet.Balance, "balance")
	requireDec(t, "0", wallet.MarginUsed, "margin used")
	requireDec(t, "10000", wallet.FreeMargin, "free margin")

	orders, err := eng.GetOrders(ctx, asCaller(user), user.ID, "", 0)
	require.NoError(t, err)
	require.Empty(t, orders)

	positions, err := eng.GetPositions(ctx, asCaller(user), user.ID, repository.PositionFilterAll)
	require.NoError(t, err)
	require.Empty(t, positions)
}

func TestPlaceMarketOrderValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "validation@test.local")
	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	tests := []struct {
		name   string
		params engine.MarketOrderParams
		want   error
	}{
		{
			name:   "zero size",
			params: engine.MarketOrderParams{UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: decimal.Zero},
			want:   engine.ErrInvalidOrder,
		},
		{
			name:   "negative size",
			params: engine.MarketOrderParams{UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("-1")},
			want:   engine.ErrInvalidOrder,
		},
		{
			name:   "bad side",
			params: engine.MarketOrderParams{UserID: user.ID, Symbol: "EURUSD", Side: "hold", Size: d("1")},
			want:   engine.ErrInvalidOrder,
		},
		{
			name:   "empty symbol",
			params: engine.MarketOrderParams{UserID: user.ID, Symbol: "", Side: model.SideBuy, Size: d("1")},
			want:   engine.ErrInvalidOrder,
		},
		{
			name:   "unknown symbol",
			params: engine.MarketOrderParams{UserID: user.ID, Symbol: "DOGEUSD", Side: model.SideBuy, Size: d("1")},
			want:   engine.ErrPriceUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.PlaceMarketOrder(ctx, asCaller(user), tc.params)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPlaceMarketOrderAveragesEntry(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "vwap@test.local")
	eng, static := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	_, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("10"),
	})
	require.NoError(t, err)

	static.SetPrice("EURUSD", d("200"))
	res, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("10"),
	})
	require.NoError(t, err)

	// (10*100 + 10*200) / 20 = 150
	requireDec(t, "20", res.Position.Size, "merged size")
	requireDec(t, "150", res.Position.EntryPrice, "vwap entry")
	requireDec(t, "0", res.RealizedPnl, "no pnl on merge")

	// margin fully backs the entry notional: 1% of 20 * 150 = 30
	wallet := loadWallet(t, db, user.ID)
	requireDec(t, "30", wallet.MarginUsed, "margin used")
	requireDec(t, "9970", wallet.FreeMargin, "free margin")
	requireDec(t, "10000", wallet.Balance, "balance")

	// one open row, not two
	positions, err := eng.GetPositions(ctx, asCaller(user), user.ID, repository.PositionFilterOpen)
	require.NoError(t, err)
	require.Len(t, positions, 1)
}

func TestPlaceMarketOrderPartialReduce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "reduce@test.local")
	eng, static := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	_, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("10"),
	})
	require.NoError(t, err)

	static.SetPrice("EURUSD", d("110"))
	res, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideSell, Size: d("4"),
	})
	require.NoError(t, err)

	// (110 - 100) * 4 = 40 realized, entry unchanged on the remainder
	requireDec(t, "40", res.RealizedPnl, "realized pnl")
	requireDec(t, "6", res.Position.Size, "remaining size")
	requireDec(t, "100", res.Position.EntryPrice, "entry unchanged")
	requireDec(t, "40", res.Position.RealizedPnl, "accumulated pnl on position")

	// remaining margin backs 1% of 6 * 100 = 6
	wallet := loadWallet(t, db, user.ID)
	requireDec(t, "10040", wallet.Balance, "balance")
	requireDec(t, "6", wallet.MarginUsed, "margin used")
	requireDec(t, "10034", wallet.FreeMargin, "free margin")
	requireDec(t, "10046", wallet.Equity, "equity")
}

func TestCloseAtEntryRestoresWallet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "roundtrip@test.local")
	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	res, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("10"),
	})
	require.NoError(t, err)

	closed, err := eng.ClosePosition(ctx, asCaller(user), user.ID, res.Position.ID)
	require.NoError(t, err)
	requireDec(t, "0", closed.RealizedPnl, "pnl closing at entry")
	require.Nil(t, closed.Position)

	// open -> close at the same price is a no-op on the wallet
	wallet := loadWallet(t, db, user.ID)
	requireDec(t, "10000", wallet.Balance, "balance")
	requireDec(t, "0", wallet.MarginUsed, "margin used")
	requireDec(t, "10000", wallet.FreeMargin, "free margin")
	requireDec(t, "10000", wallet.Equity, "equity")

	open, err := eng.GetPositions(ctx, asCaller(user), user.ID, repository.PositionFilterOpen)
	require.NoError(t, err)
	require.Empty(t, open)

	closedPositions, err := eng.GetPositions(ctx, asCaller(user), user.ID, repository.PositionFilterClosed)
	require.NoError(t, err)
	require.Len(t, closedPositions, 1)
	require.NotNil(t, closedPositions[0].ClosedAt)
}

func TestPlaceMarketOrderFlip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "flip@test.local")
	eng, static := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	_, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("10"),
	})
	require.NoError(t, err)

	static.SetPrice("EURUSD", d("110"))
	res, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideSell, Size: d("15"),
	})
	require.NoError(t, err)

	// the long 10 closes for (110-100)*10 = 100, the remaining 5 opens short
	requireDec(t, "100", res.RealizedPnl, "realized pnl")
	require.Equal(t, model.SideSell, res.Position.Side)
	requireDec(t, "5", res.Position.Size, "flipped size")
	requireDec(t, "110", res.Position.EntryPrice, "flipped entry at fill price")
	requireDec(t, "0", res.Position.RealizedPnl, "fresh position carries no pnl")

	// margin backs only the new short: 1% of 5 * 110 = 5.5
	wallet := loadWallet(t, db, user.ID)
	requireDec(t, "10100", wallet.Balance, "balance")
	requireDec(t, "5.5", wallet.MarginUsed, "margin used")
	requireDec(t, "10094.5", wallet.FreeMargin, "free margin")
	requireDec(t, "10105.5", wallet.Equity, "equity")

	open, err := eng.GetPositions(ctx, asCaller(user), user.ID, repository.PositionFilterOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestClosePositionNotFound(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "nopos@test.local")
	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	_, err := eng.ClosePosition(ctx, asCaller(user), user.ID, 4242)
	require.ErrorIs(t, err, engine.ErrPositionNotFound)
}

func TestPendingOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "pending@test.local")
	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	order, err := eng.PlacePendingOrder(ctx, asCaller(user), engine.PendingOrderParams{
		UserID:    user.ID,
		Symbol:    "EURUSD",
		Side:      model.SideBuy,
		OrderType: model.OrderTypeLimit,
		Size:      d("5"),
		Price:     dptr("95"),
	})
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusPending, order.Status)
	require.NotEmpty(t, order.ClientOrderID)

	// pending orders reserve nothing until they fill
	wallet := loadWallet(t, db, user.ID)
	requireDec(t, "0", wallet.MarginUsed, "margin used")
	requireDec(t, "10000", wallet.FreeMargin, "free margin")

	listed, err := eng.GetOrders(ctx, asCaller(user), user.ID, model.OrderStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	cancelled, err := eng.CancelOrder(ctx, asCaller(user), user.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCancelled, cancelled.Status)

	// terminal states stay terminal
	_, err = eng.CancelOrder(ctx, asCaller(user), user.ID, order.ID)
	require.ErrorIs(t, err, engine.ErrInvalidOrder)

	_, err = eng.CancelOrder(ctx, asCaller(user), user.ID, 999)
	require.ErrorIs(t, err, engine.ErrOrderNotFound)
}

func TestPendingOrderValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "pendingval@test.local")
	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	tests := []struct {
		name   string
		params engine.PendingOrderParams
	}{
		{
			name: "market through pending path",
			params: engine.PendingOrderParams{
				UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy,
				OrderType: model.OrderTypeMarket, Size: d("1"),
			},
		},
		{
			name: "limit without price",
			params: engine.PendingOrderParams{
				UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy,
				OrderType: model.OrderTypeLimit, Size: d("1"),
			},
		},
		{
			name: "stop without stop price",
			params: engine.PendingOrderParams{
				UserID: user.ID, Symbol: "EURUSD", Side: model.SideSell,
				OrderType: model.OrderTypeStop, Size: d("1"),
			},
		},
		{
			name: "stop limit missing limit price",
			params: engine.PendingOrderParams{
				UserID: user.ID, Symbol: "EURUSD", Side: model.SideSell,
				OrderType: model.OrderTypeStopLimit, Size: d("1"), StopPrice: dptr("90"),
			},
		},
		{
			name: "unknown type",
			params: engine.PendingOrderParams{
				UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy,
				OrderType: "iceberg", Size: d("1"),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.PlacePendingOrder(ctx, asCaller(user), tc.params)
			require.ErrorIs(t, err, engine.ErrInvalidOrder)
		})
	}
}

func TestAuthorization(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	manager := &model.User{Email: "manager@test.local", Role: model.RoleManager}
	require.NoError(t, db.Create(manager).Error)
	require.NoError(t, db.Create(model.NewWallet(manager.ID)).Error)

	client := &model.User{Email: "client@test.local", Role: model.RoleTrader, ManagerID: &manager.ID}
	require.NoError(t, db.Create(client).Error)
	require.NoError(t, db.Create(model.NewWallet(client.ID)).Error)

	stranger := seedTrader(t, db, "stranger@test.local")

	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	order := engine.MarketOrderParams{Symbol: "EURUSD", Side: model.SideBuy, Size: d("1")}

	// a trader cannot touch another account
	order.UserID = client.ID
	_, err := eng.PlaceMarketOrder(ctx, asCaller(stranger), order)
	require.ErrorIs(t, err, engine.ErrUnauthorized)

	// a manager can act for their client
	_, err = eng.PlaceMarketOrder(ctx, asCaller(manager), order)
	require.NoError(t, err)

	// but not for unrelated users
	order.UserID = stranger.ID
	_, err = eng.PlaceMarketOrder(ctx, asCaller(manager), order)
	require.ErrorIs(t, err, engine.ErrUnauthorized)

	// system caller acts on anyone
	_, err = eng.PlaceMarketOrder(ctx, engine.SystemCaller, order)
	require.NoError(t, err)
}

func TestGetWalletProjectionNotPersisted(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "projection@test.local")
	eng, static := newTestEngine(t, db, map[string]decimal.Decimal{"EURUSD": d("100")})

	_, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("10"),
	})
	require.NoError(t, err)

	static.SetPrice("EURUSD", d("110"))

	info, err := eng.GetWallet(ctx, asCaller(user), user.ID)
	require.NoError(t, err)
	requireDec(t, "100", info.UnrealizedPnl, "unrealized pnl")
	requireDec(t, "10100", info.ProjectedEquity, "projected equity")
	require.Equal(t, 1, info.OpenPositions)

	// the projection never touches the stored wallet
	wallet := loadWallet(t, db, user.ID)
	requireDec(t, "10000", wallet.Balance, "balance")
	requireDec(t, "10010", wallet.Equity, "persisted equity")
}

func TestPerformanceReport(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "performance@test.local")
	eng, static := newTestEngine(t, db, map[string]decimal.Decimal{
		"EURUSD": d("100"),
		"GBPUSD": d("200"),
	})

	// winning trade on EURUSD
	res, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("10"),
	})
	require.NoError(t, err)
	static.SetPrice("EURUSD", d("110"))
	_, err = eng.ClosePosition(ctx, asCaller(user), user.ID, res.Position.ID)
	require.NoError(t, err)

	// losing trade on GBPUSD
	res, err = eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "GBPUSD", Side: model.SideBuy, Size: d("5"),
	})
	require.NoError(t, err)
	static.SetPrice("GBPUSD", d("190"))
	_, err = eng.ClosePosition(ctx, asCaller(user), user.ID, res.Position.ID)
	require.NoError(t, err)

	// still-open trade, currently up 50
	_, err = eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
		UserID: user.ID, Symbol: "EURUSD", Side: model.SideBuy, Size: d("5"),
	})
	require.NoError(t, err)
	static.SetPrice("EURUSD", d("120"))

	report, err := eng.Performance(ctx, asCaller(user), user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalTrades)
	require.Equal(t, 1, report.WinningTrades)
	require.Equal(t, 1, report.LosingTrades)
	requireDec(t, "50", report.WinRate, "win rate")
	requireDec(t, "50", report.TotalRealizedPnl, "realized pnl") // +100 - 50
	requireDec(t, "50", report.TotalUnrealizedPnl, "unrealized pnl")
	require.Equal(t, 1, report.OpenPositions)
}

// Interleaved orders on one account must keep the wallet consistent with
// the open positions: with prices held constant every realized leg nets to
// zero, so the balance must come back untouched and margin must equal 1%
// of the open entry notional.
func TestConcurrentFillsKeepWalletConsistent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedTrader(t, db, "concurrent@test.local")
	eng, _ := newTestEngine(t, db, map[string]decimal.Decimal{
		"EURUSD": d("100"),
		"GBPUSD": d("250"),
	})

	symbols := []string{"EURUSD", "GBPUSD"}
	sides := []string{model.SideBuy, model.SideSell}

	const workers = 8
	const opsPerWorker = 12

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for i := 0; i < opsPerWorker; i++ {
				_, err := eng.PlaceMarketOrder(ctx, asCaller(user), engine.MarketOrderParams{
					UserID: user.ID,
					Symbol: symbols[rng.Intn(len(symbols))],
					Side:   sides[rng.Intn(len(sides))],
					Size:   decimal.NewFromInt(int64(1 + rng.Intn(3))),
				})
				if err != nil {
					t.Errorf("concurrent order failed: %v", err)
					return
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()

	wallet := loadWallet(t, db, user.ID)
	open, err := eng.GetPositions(ctx, asCaller(user), user.ID, repository.PositionFilterOpen)
	require.NoError(t, err)

	expectedMargin := decimal.Zero
	for i := range open {
		require.True(t, open[i].Size.IsPositive(), "open position with non-positive size")
		expectedMargin = expectedMargin.Add(ledger.RequiredMargin(open[i].Size, open[i].EntryPrice))
	}

	require.Truef(t, wallet.MarginUsed.Equal(expectedMargin),
		"margin drift: wallet %s vs positions %s", wallet.MarginUsed, expectedMargin)
	requireDec(t, "10000", wallet.Balance, "balance after flat round trips")
	require.True(t, wallet.FreeMargin.Equal(wallet.Balance.Sub(wallet.MarginUsed)), "free margin identity")
	require.True(t, wallet.Equity.Equal(wallet.Balance.Add(wallet.MarginUsed)), "equity identity")

	// at most one open position per symbol
	seen := map[string]bool{}
	for i := range open {
		require.Falsef(t, seen[open[i].Symbol], "duplicate open position for %s", open[i].Symbol)
		seen[open[i].Symbol] = true
	}
}
