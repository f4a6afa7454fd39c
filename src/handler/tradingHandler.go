package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/auth"
	"tradesim/src/engine"
	"tradesim/src/model"
)

// executionEngine is the slice of the engine the HTTP layer needs; tests
// substitute a mock.
type executionEngine interface {
	PlaceMarketOrder(ctx context.Context, caller engine.Caller, params engine.MarketOrderParams) (*engine.ExecutionResult, error)
	PlacePendingOrder(ctx context.Context, caller engine.Caller, params engine.PendingOrderParams) (*model.Order, error)
	ClosePosition(ctx context.Context, caller engine.Caller, userID, positionID uint) (*engine.ExecutionResult, error)
	CancelOrder(ctx context.Context, caller engine.Caller, userID, orderID uint) (*model.Order, error)
	GetWallet(ctx context.Context, caller engine.Caller, userID uint) (*engine.WalletInfo, error)
	GetPositions(ctx context.Context, caller engine.Caller, userID uint, status string) ([]model.Position, error)
	GetOrders(ctx context.Context, caller engine.Caller, userID uint, status string, limit int) ([]model.Order, error)
	Performance(ctx context.Context, caller engine.Caller, userID uint) (*engine.PerformanceReport, error)
}

func callerOf(user *model.User) engine.Caller {
	return engine.Caller{UserID: user.ID, Role: user.Role}
}

// targetUserID resolves which account the request acts on: the userId query
// parameter when present (managers/admins acting for a client), otherwise
// the caller's own account. The engine enforces the capability check.
func targetUserID(user *model.User, r *http.Request) (uint, error) {
	raw := r.URL.Query().Get("userId")
	if raw == "" {
		return user.ID, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid userId")
	}
	return uint(id), nil
}

func urlParamUint(r *http.Request, key string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, key), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// writeEngineError maps the engine's sentinel errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidOrder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrInsufficientMargin):
		http.Error(w, "Insufficient margin", http.StatusPaymentRequired)
	case errors.Is(err, engine.ErrPositionNotFound), errors.Is(err, engine.ErrOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrUnauthorized):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, engine.ErrPriceUnavailable):
		http.Error(w, "Price unavailable", http.StatusServiceUnavailable)
	default:
		logger.WithError(err).Error("order endpoint failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

type placeOrderPayload struct {
	UserID     *uint            `json:"user_id,omitempty"`
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	OrderType  string           `json:"order_type,omitempty"`
	Size       decimal.Decimal  `json:"size"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	StopPrice  *decimal.Decimal `json:"stop_price,omitempty"`
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
}

// PlaceOrderHandler submits an order for the authenticated caller. Market
// orders (the default type) fill synchronously; other types persist as
// pending.
func PlaceOrderHandler(eng executionEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var payload placeOrderPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid place order payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		targetID := user.ID
		if payload.UserID != nil {
			targetID = *payload.UserID
		}

		if payload.OrderType == "" || payload.OrderType == model.OrderTypeMarket {
			result, err := eng.PlaceMarketOrder(r.Context(), callerOf(user), engine.MarketOrderParams{
				UserID:     targetID,
				Symbol:     payload.Symbol,
				Side:       payload.Side,
				Size:       payload.Size,
				StopLoss:   payload.StopLoss,
				TakeProfit: payload.TakeProfit,
			})
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, result)
			return
		}

		order, err := eng.PlacePendingOrder(r.Context(), callerOf(user), engine.PendingOrderParams{
			UserID:    targetID,
			Symbol:    payload.Symbol,
			Side:      payload.Side,
			OrderType: payload.OrderType,
			Size:      payload.Size,
			Price:     payload.Price,
			StopPrice: payload.StopPrice,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}

// ClosePositionHandler closes the full remaining size of an open position
// at the market.
func ClosePositionHandler(eng executionEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		targetID, err := targetUserID(user, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		positionID, err := urlParamUint(r, "positionID")
		if err != nil {
			http.Error(w, "invalid position id", http.StatusBadRequest)
			return
		}

		result, err := eng.ClosePosition(r.Context(), callerOf(user), targetID, positionID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// CancelOrderHandler cancels a pending order.
func CancelOrderHandler(eng executionEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		targetID, err := targetUserID(user, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		orderID, err := urlParamUint(r, "orderID")
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := eng.CancelOrder(r.Context(), callerOf(user), targetID, orderID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// WalletHandler returns the wallet with its mark-to-market projection.
func WalletHandler(eng executionEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		targetID, err := targetUserID(user, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		info, err := eng.GetWallet(r.Context(), callerOf(user), targetID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// ListPositionsHandler lists positions filtered by ?status=open|closed|all.
func ListPositionsHandler(eng executionEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		targetID, err := targetUserID(user, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		positions, err := eng.GetPositions(r.Context(), callerOf(user), targetID, r.URL.Query().Get("status"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

// ListOrdersHandler lists orders filtered by ?status= with ?limit=.
func ListOrdersHandler(eng executionEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		targetID, err := targetUserID(user, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		orders, err := eng.GetOrders(r.Context(), callerOf(user), targetID, r.URL.Query().Get("status"), limit)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

// PerformanceHandler returns the closed-trade statistics for an account.
func PerformanceHandler(eng executionEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		targetID, err := targetUserID(user, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		report, err := eng.Performance(r.Context(), callerOf(user), targetID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
