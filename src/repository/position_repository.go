package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradesim/src/database"
	"tradesim/src/model"
)

// PositionStatusFilter selects which positions Search returns.
const (
	PositionFilterOpen   = "open"
	PositionFilterClosed = "closed"
	PositionFilterAll    = "all"
)

// PositionRepository handles read/write operations for positions.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	logger.WithField("component", "PositionRepository").
		Info("Creating new PositionRepository with MainDB")

	return &PositionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create inserts a new position.
func (r *PositionRepository) Create(
	ctx context.Context,
	position *model.Position,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "Create",
		"user_id": position.UserID,
		"symbol":  position.Symbol,
		"side":    position.Side,
	}).Debug("Creating new position")

	return r.db.WithContext(ctx).Create(position).Error
}

// Save persists all position fields.
func (r *PositionRepository) Save(
	ctx context.Context,
	position *model.Position,
) error {

	err := r.db.WithContext(ctx).Save(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Save",
			"position_id": position.ID,
		}).WithError(err).Error("Failed to save position")

		return err
	}

	return nil
}

// FindOpenByUserAndSymbol fetches the unique open position for (user, symbol).
// Returns (nil, nil) if none exists.
func (r *PositionRepository) FindOpenByUserAndSymbol(
	ctx context.Context,
	userID uint,
	symbol string,
) (*model.Position, error) {

	var position model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND is_open = ?", userID, symbol, true).
		First(&position).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindOpenByUserAndSymbol",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to fetch open position")

		return nil, err
	}

	return &position, nil
}

// FindOpenByID fetches an open position by id scoped to its owner.
// Returns (nil, nil) if no open position with that id belongs to the user.
func (r *PositionRepository) FindOpenByID(
	ctx context.Context,
	userID uint,
	positionID uint,
) (*model.Position, error) {

	var position model.Position

	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_open = ?", positionID, userID, true).
		First(&position).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":        "PositionRepository",
				"op":          "FindOpenByID",
				"user_id":     userID,
				"position_id": positionID,
			}).Info("Open position not found")

			return nil, nil
		}

		return nil, err
	}

	return &position, nil
}

// Search lists a user's positions filtered by open/closed status,
// newest first.
func (r *PositionRepository) Search(
	ctx context.Context,
	userID uint,
	statusFilter string,
) ([]model.Position, error) {

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)

	switch statusFilter {
	case PositionFilterOpen:
		query = query.Where("is_open = ?", true)
	case PositionFilterClosed:
		query = query.Where("is_open = ?", false)
	}

	var positions []model.Position
	err := query.Order("opened_at DESC, id DESC").Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "Search",
			"user_id": userID,
			"status":  statusFilter,
		}).WithError(err).Error("Failed to search positions")

		return nil, err
	}

	return positions, nil
}

// FindAllOpen lists every open position platform-wide, for the
// stop-loss/take-profit sweep.
func (r *PositionRepository) FindAllOpen(
	ctx context.Context,
) ([]model.Position, error) {

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("is_open = ?", true).
		Order("id ASC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "FindAllOpen",
		}).WithError(err).Error("Failed to list open positions")

		return nil, err
	}

	return positions, nil
}
