package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradesim/src/database"
	"tradesim/src/model"
)

// StrategyRepository handles read/write operations for automation strategies.
type StrategyRepository struct {
	db *gorm.DB
}

// NewStrategyRepository creates a new repository instance using the main read/write database.
func NewStrategyRepository() *StrategyRepository {
	logger.WithField("component", "StrategyRepository").
		Info("Creating new StrategyRepository with MainDB")

	return &StrategyRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *StrategyRepository) WithDB(db *gorm.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

// Create inserts a new strategy.
func (r *StrategyRepository) Create(
	ctx context.Context,
	strategy *model.AutomationStrategy,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":          "StrategyRepository",
		"op":            "Create",
		"manager_id":    strategy.ManagerID,
		"client_id":     strategy.ClientID,
		"strategy_type": strategy.StrategyType,
	}).Debug("Creating new strategy")

	return r.db.WithContext(ctx).Create(strategy).Error
}

// Save persists all strategy fields, including the parameter map
// (e.g. last_order_time updated after a DCA buy).
func (r *StrategyRepository) Save(
	ctx context.Context,
	strategy *model.AutomationStrategy,
) error {

	err := r.db.WithContext(ctx).Save(strategy).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "StrategyRepository",
			"op":          "Save",
			"strategy_id": strategy.ID,
		}).WithError(err).Error("Failed to save strategy")

		return err
	}

	return nil
}

// FindByID fetches a strategy by its primary ID.
// Returns (nil, nil) if the strategy is not found.
func (r *StrategyRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.AutomationStrategy, error) {

	var strategy model.AutomationStrategy

	err := r.db.WithContext(ctx).First(&strategy, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "StrategyRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch strategy by ID")

		return nil, err
	}

	return &strategy, nil
}

// FindActive lists every strategy flagged active. The caller still has to
// check the start/end activity window against "now".
func (r *StrategyRepository) FindActive(
	ctx context.Context,
) ([]model.AutomationStrategy, error) {

	var strategies []model.AutomationStrategy

	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&strategies).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "StrategyRepository",
			"op":   "FindActive",
		}).WithError(err).Error("Failed to list active strategies")

		return nil, err
	}

	return strategies, nil
}

// FindByManager lists every strategy the manager runs, newest first.
func (r *StrategyRepository) FindByManager(
	ctx context.Context,
	managerID uint,
) ([]model.AutomationStrategy, error) {

	var strategies []model.AutomationStrategy

	err := r.db.WithContext(ctx).
		Where("manager_id = ?", managerID).
		Order("created_at DESC, id DESC").
		Find(&strategies).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "StrategyRepository",
			"op":         "FindByManager",
			"manager_id": managerID,
		}).WithError(err).Error("Failed to list strategies by manager")

		return nil, err
	}

	return strategies, nil
}
