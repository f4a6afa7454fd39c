package migrations

import (
	"fmt"

	"tradesim/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// backfillMissingWallets creates a wallet with the starting balance for any
// user that predates wallet provisioning at onboarding. Every user must own
// exactly one wallet before the engine can execute orders against them.
func backfillMissingWallets(db *gorm.DB) error {
	var users []model.User
	err := db.
		Where("id NOT IN (?)", db.Model(&model.Wallet{}).Select("user_id")).
		Find(&users).Error
	if err != nil {
		return fmt.Errorf("find users without wallets: %w", err)
	}

	for i := range users {
		wallet := model.NewWallet(users[i].ID)
		if err := db.Create(wallet).Error; err != nil {
			return fmt.Errorf("create wallet for user %d: %w", users[i].ID, err)
		}

		logrus.WithFields(map[string]interface{}{
			"user_id":   users[i].ID,
			"wallet_id": wallet.ID,
		}).Info("[migrations] backfilled missing wallet")
	}

	return nil
}
