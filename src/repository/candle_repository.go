package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradesim/src/database"
	"tradesim/src/model"
)

// CandleRepository handles the OHLCV price-history store.
type CandleRepository struct {
	db *gorm.DB
}

// NewCandleRepository creates a new repository instance using the main read/write database.
func NewCandleRepository() *CandleRepository {
	logger.WithField("component", "CandleRepository").
		Info("Creating new CandleRepository with MainDB")

	return &CandleRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *CandleRepository) WithDB(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// UpsertBatch inserts candles, updating OHLCV values on (symbol, datetime)
// conflicts so re-imports of the same window are idempotent.
func (r *CandleRepository) UpsertBatch(
	ctx context.Context,
	candles []model.Candle,
) error {

	if len(candles) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "datetime"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).Create(&candles).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "CandleRepository",
			"op":    "UpsertBatch",
			"count": len(candles),
		}).WithError(err).Error("Failed to upsert candles")

		return err
	}

	return nil
}

// FindRecent returns up to limit candles for a symbol in ascending
// chronological order.
func (r *CandleRepository) FindRecent(
	ctx context.Context,
	symbol string,
	limit int,
) ([]model.Candle, error) {

	if limit <= 0 {
		limit = 200
	}

	var rows []model.Candle
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("datetime DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "CandleRepository",
			"op":     "FindRecent",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch candles")

		return nil, err
	}

	// reverse to ascending chronological order for easier logic
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
