package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func freshWallet() *model.Wallet {
	return model.NewWallet(1)
}

func TestReserveMargin(t *testing.T) {
	w := freshWallet()

	if err := ReserveMargin(w, d("100")); err != nil {
		t.Fatalf("unexpected error reserving margin: %v", err)
	}

	if !w.MarginUsed.Equal(d("100")) {
		t.Fatalf("margin_used mismatch. got=%s want=100", w.MarginUsed)
	}
	if !w.FreeMargin.Equal(d("9900")) {
		t.Fatalf("free_margin mismatch. got=%s want=9900", w.FreeMargin)
	}
}

func TestReserveMarginInsufficient(t *testing.T) {
	w := freshWallet()
	before := *w

	err := ReserveMargin(w, d("10000.01"))
	if !errors.Is(err, ErrInsufficientMargin) {
		t.Fatalf("expected ErrInsufficientMargin, got %v", err)
	}

	if !w.Balance.Equal(before.Balance) ||
		!w.MarginUsed.Equal(before.MarginUsed) ||
		!w.FreeMargin.Equal(before.FreeMargin) {
		t.Fatalf("wallet mutated on rejected reservation: %+v", w)
	}
}

func TestReleaseMarginRoundTrip(t *testing.T) {
	w := freshWallet()

	if err := ReserveMargin(w, d("250")); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := ReleaseMargin(w, d("250")); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if !w.MarginUsed.IsZero() {
		t.Fatalf("margin_used should return to zero, got %s", w.MarginUsed)
	}
	if !w.FreeMargin.Equal(d("10000")) {
		t.Fatalf("free_margin should return to 10000, got %s", w.FreeMargin)
	}
}

func TestReleaseMarginClampsUnderflow(t *testing.T) {
	w := freshWallet()

	if err := ReserveMargin(w, d("50")); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	err := ReleaseMargin(w, d("80"))
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}

	if !w.MarginUsed.IsZero() {
		t.Fatalf("margin_used must clamp to zero, got %s", w.MarginUsed)
	}
	if !w.FreeMargin.Equal(d("10000")) {
		t.Fatalf("free_margin should hold the full released amount, got %s", w.FreeMargin)
	}
}

func TestSettleAndFinalizeKeepEquityInvariant(t *testing.T) {
	w := freshWallet()

	if err := ReserveMargin(w, d("10")); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	SettleRealizedPnl(w, d("100"))
	Finalize(w)

	if !w.Balance.Equal(d("10100")) {
		t.Fatalf("balance mismatch. got=%s want=10100", w.Balance)
	}
	if !w.Equity.Equal(w.Balance.Add(w.MarginUsed)) {
		t.Fatalf("equity invariant broken. equity=%s balance=%s margin_used=%s",
			w.Equity, w.Balance, w.MarginUsed)
	}
	if !w.FreeMargin.Equal(w.Balance.Sub(w.MarginUsed)) {
		t.Fatalf("free margin drifted. free=%s balance=%s margin_used=%s",
			w.FreeMargin, w.Balance, w.MarginUsed)
	}
}

func TestRequiredMargin(t *testing.T) {
	got := RequiredMargin(d("10"), d("100"))
	if !got.Equal(d("10")) {
		t.Fatalf("1%% of 1000 notional should be 10, got %s", got)
	}
}

func TestProjectedEquityIsDisplayOnly(t *testing.T) {
	w := freshWallet()

	projected := ProjectedEquity(w, d("123.456"))
	if !projected.Equal(d("10123.46")) {
		t.Fatalf("projected equity mismatch. got=%s want=10123.46", projected)
	}
	if !w.Equity.Equal(d("10000")) {
		t.Fatalf("projection must not persist into equity, got %s", w.Equity)
	}
}
