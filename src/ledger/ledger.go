// Package ledger owns wallet solvency arithmetic. Every mutation keeps two
// facts true once the surrounding engine operation settles:
//
//   - equity = balance + margin_used
//   - free_margin = balance - margin_used, and never negative
//
// Margin is a flat 1% of notional (size * price), reserved before a fill and
// released when the exposure it backs is closed or reduced.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/model"
)

// ErrInsufficientMargin rejects a reservation that exceeds free margin.
// Nothing is mutated when it is returned.
var ErrInsufficientMargin = errors.New("insufficient margin")

// ErrInvariantViolation flags an accounting inconsistency, e.g. a release
// that would drive margin_used negative. The wallet is clamped to a sane
// state but the error must be surfaced loudly, never swallowed.
var ErrInvariantViolation = errors.New("ledger invariant violation")

// MarginRate is the flat margin requirement per unit of notional.
var MarginRate = decimal.RequireFromString("0.01")

// RequiredMargin computes the margin to reserve for a fill of the given
// size at the given price.
func RequiredMargin(size, price decimal.Decimal) decimal.Decimal {
	return size.Mul(price).Mul(MarginRate)
}

// ReserveMargin locks amount out of the wallet's free margin. Fails with
// ErrInsufficientMargin, leaving the wallet untouched, when amount exceeds
// what is free.
func ReserveMargin(wallet *model.Wallet, amount decimal.Decimal) error {
	if amount.GreaterThan(wallet.FreeMargin) {
		return ErrInsufficientMargin
	}

	wallet.MarginUsed = wallet.MarginUsed.Add(amount)
	wallet.FreeMargin = wallet.FreeMargin.Sub(amount)
	return nil
}

// ReleaseMargin returns amount to the wallet's free margin. The release is
// clamped so margin_used never goes negative; a clamp means some earlier
// accounting was wrong and is reported as ErrInvariantViolation after the
// wallet has been repaired.
func ReleaseMargin(wallet *model.Wallet, amount decimal.Decimal) error {
	if amount.GreaterThan(wallet.MarginUsed) {
		logger.WithFields(map[string]interface{}{
			"wallet_id":   wallet.ID,
			"margin_used": wallet.MarginUsed,
			"release":     amount,
		}).Error("Margin release exceeds margin in use")

		wallet.FreeMargin = wallet.FreeMargin.Add(wallet.MarginUsed)
		wallet.MarginUsed = decimal.Zero
		return ErrInvariantViolation
	}

	wallet.MarginUsed = wallet.MarginUsed.Sub(amount)
	wallet.FreeMargin = wallet.FreeMargin.Add(amount)
	return nil
}

// SettleRealizedPnl books a realized profit or loss into the balance. The
// freed-up (or lost) cash moves free margin by the same amount.
func SettleRealizedPnl(wallet *model.Wallet, pnl decimal.Decimal) {
	wallet.Balance = wallet.Balance.Add(pnl)
	wallet.FreeMargin = wallet.FreeMargin.Add(pnl)
}

// Finalize recomputes equity from the settled balance and margin. Call once
// at the end of every engine operation that touched the wallet.
func Finalize(wallet *model.Wallet) {
	wallet.Equity = wallet.Balance.Add(wallet.MarginUsed)
}

// ProjectedEquity is the display-time equity including unrealized P&L on
// open positions. It is never persisted.
func ProjectedEquity(wallet *model.Wallet, unrealizedPnl decimal.Decimal) decimal.Decimal {
	return wallet.Balance.Add(unrealizedPnl).Round(2)
}
