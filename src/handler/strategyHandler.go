package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/auth"
	"tradesim/src/model"
)

type strategyStore interface {
	Create(ctx context.Context, strategy *model.AutomationStrategy) error
	Save(ctx context.Context, strategy *model.AutomationStrategy) error
	FindByID(ctx context.Context, id uint) (*model.AutomationStrategy, error)
	FindByManager(ctx context.Context, managerID uint) ([]model.AutomationStrategy, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

func canManageStrategies(user *model.User) bool {
	switch user.Role {
	case model.RoleManager, model.RoleAdmin, model.RoleSuperadmin:
		return true
	}
	return false
}

type createStrategyPayload struct {
	ClientID          uint             `json:"client_id"`
	Name              string           `json:"name"`
	Symbol            string           `json:"symbol"`
	StrategyType      string           `json:"strategy_type"`
	Parameters        map[string]any   `json:"parameters,omitempty"`
	CapitalAllocation decimal.Decimal  `json:"capital_allocation"`
	StopLossPct       *decimal.Decimal `json:"stop_loss_pct,omitempty"`
	TakeProfitPct     *decimal.Decimal `json:"take_profit_pct,omitempty"`
	MaxDailyLoss      *decimal.Decimal `json:"max_daily_loss,omitempty"`
	StartDate         *time.Time       `json:"start_date,omitempty"`
	EndDate           *time.Time       `json:"end_date,omitempty"`
}

// CreateStrategyHandler lets a manager attach an automation strategy to one
// of their clients. Admins may target any user.
func CreateStrategyHandler(strategies strategyStore, users userFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !canManageStrategies(user) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		var payload createStrategyPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid create strategy payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if payload.Symbol == "" || payload.Name == "" {
			http.Error(w, "name and symbol are required", http.StatusBadRequest)
			return
		}
		switch payload.StrategyType {
		case model.StrategyTypeDCA, model.StrategyTypeMomentum:
		default:
			http.Error(w, "unknown strategy type", http.StatusBadRequest)
			return
		}

		client, err := users.FindByID(r.Context(), payload.ClientID)
		if err != nil {
			logger.WithError(err).Error("failed to load strategy client")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if client == nil {
			http.Error(w, "client not found", http.StatusNotFound)
			return
		}

		// managers only automate their own clients
		if user.Role == model.RoleManager &&
			(client.ManagerID == nil || *client.ManagerID != user.ID) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		strategy := &model.AutomationStrategy{
			ManagerID:         user.ID,
			ClientID:          payload.ClientID,
			Name:              payload.Name,
			Symbol:            payload.Symbol,
			StrategyType:      payload.StrategyType,
			Parameters:        payload.Parameters,
			CapitalAllocation: payload.CapitalAllocation,
			StopLossPct:       payload.StopLossPct,
			TakeProfitPct:     payload.TakeProfitPct,
			MaxDailyLoss:      payload.MaxDailyLoss,
			IsActive:          true,
			StartDate:         payload.StartDate,
			EndDate:           payload.EndDate,
		}

		if err := strategies.Create(r.Context(), strategy); err != nil {
			logger.WithError(err).Error("failed to create strategy")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, strategy)
	}
}

// ListStrategiesHandler lists the strategies the caller manages.
func ListStrategiesHandler(strategies strategyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !canManageStrategies(user) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		list, err := strategies.FindByManager(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to list strategies")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// DeactivateStrategyHandler switches a strategy off. The monitor stops
// evaluating it on the next pass.
func DeactivateStrategyHandler(strategies strategyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !canManageStrategies(user) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		strategyID, err := urlParamUint(r, "strategyID")
		if err != nil {
			http.Error(w, "invalid strategy id", http.StatusBadRequest)
			return
		}

		strategy, err := strategies.FindByID(r.Context(), strategyID)
		if err != nil {
			logger.WithError(err).Error("failed to load strategy")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if strategy == nil {
			http.Error(w, "strategy not found", http.StatusNotFound)
			return
		}
		if user.Role == model.RoleManager && strategy.ManagerID != user.ID {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		strategy.IsActive = false
		if err := strategies.Save(r.Context(), strategy); err != nil {
			logger.WithError(err).Error("failed to deactivate strategy")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, strategy)
	}
}
