package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradesim/src/database"
	"tradesim/src/model"
)

// WalletRepository handles read/write operations for wallets.
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new repository instance using the main read/write database.
func NewWalletRepository() *WalletRepository {
	logger.WithField("component", "WalletRepository").
		Info("Creating new WalletRepository with MainDB")

	return &WalletRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *WalletRepository) WithDB(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a new wallet.
func (r *WalletRepository) Create(
	ctx context.Context,
	wallet *model.Wallet,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "WalletRepository",
		"op":      "Create",
		"user_id": wallet.UserID,
	}).Debug("Creating new wallet")

	return r.db.WithContext(ctx).Create(wallet).Error
}

// GetByUserID fetches the single wallet owned by the given user.
// Returns (nil, nil) if the wallet is not found.
func (r *WalletRepository) GetByUserID(
	ctx context.Context,
	userID uint,
) (*model.Wallet, error) {

	var wallet model.Wallet

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&wallet).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":    "WalletRepository",
				"op":      "GetByUserID",
				"user_id": userID,
			}).Info("Wallet not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "WalletRepository",
			"op":      "GetByUserID",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch wallet")

		return nil, err
	}

	return &wallet, nil
}

// Save persists all wallet fields.
func (r *WalletRepository) Save(
	ctx context.Context,
	wallet *model.Wallet,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "WalletRepository",
		"op":          "Save",
		"wallet_id":   wallet.ID,
		"balance":     wallet.Balance,
		"margin_used": wallet.MarginUsed,
	}).Debug("Saving wallet")

	err := r.db.WithContext(ctx).Save(wallet).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "WalletRepository",
			"op":        "Save",
			"wallet_id": wallet.ID,
		}).WithError(err).Error("Failed to save wallet")

		return err
	}

	return nil
}
