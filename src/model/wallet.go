package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user account ledger. All amounts are 2-decimal currency
// values. Equity always equals Balance + MarginUsed once an engine operation
// has settled; FreeMargin is the capacity left for new margin reservations
// and never goes negative through a successful order.
type Wallet struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance    decimal.Decimal `gorm:"type:numeric(15,2)" json:"balance"`
	Equity     decimal.Decimal `gorm:"type:numeric(15,2)" json:"equity"`
	MarginUsed decimal.Decimal `gorm:"type:numeric(15,2)" json:"margin_used"`
	FreeMargin decimal.Decimal `gorm:"type:numeric(15,2)" json:"free_margin"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// StartingBalance is credited to every wallet at trader onboarding.
var StartingBalance = decimal.NewFromInt(10000)

// NewWallet returns a wallet funded with the fixed starting balance.
func NewWallet(userID uint) *Wallet {
	return &Wallet{
		UserID:     userID,
		Balance:    StartingBalance,
		Equity:     StartingBalance,
		MarginUsed: decimal.Zero,
		FreeMargin: StartingBalance,
	}
}
