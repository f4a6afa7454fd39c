package book

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fill(side, size, price string) Fill {
	return Fill{
		UserID: 1,
		Symbol: "BTCUSD",
		Side:   side,
		Size:   d(size),
		Price:  d(price),
		At:     time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC),
	}
}

func TestApplyFillOpensNewPosition(t *testing.T) {
	res := ApplyFill(nil, fill(model.SideBuy, "10", "100"))

	if res.Open == nil || !res.Opened {
		t.Fatalf("expected a newly opened position, got %+v", res)
	}
	if !res.Open.Size.Equal(d("10")) || !res.Open.EntryPrice.Equal(d("100")) {
		t.Fatalf("unexpected position: size=%s entry=%s", res.Open.Size, res.Open.EntryPrice)
	}
	if !res.RealizedPnl.IsZero() {
		t.Fatalf("opening a position must not realize P&L, got %s", res.RealizedPnl)
	}
	if !res.Open.IsOpen || res.Open.ClosedAt != nil {
		t.Fatalf("new position should be open: %+v", res.Open)
	}
}

func TestApplyFillSameSideAveraging(t *testing.T) {
	first := ApplyFill(nil, fill(model.SideBuy, "10", "100"))
	res := ApplyFill(first.Open, fill(model.SideBuy, "10", "200"))

	if !res.Open.EntryPrice.Equal(d("150")) {
		t.Fatalf("weighted average entry mismatch. got=%s want=150", res.Open.EntryPrice)
	}
	if !res.Open.Size.Equal(d("20")) {
		t.Fatalf("size mismatch. got=%s want=20", res.Open.Size)
	}
	if !res.RealizedPnl.IsZero() {
		t.Fatalf("increasing a position must not realize P&L, got %s", res.RealizedPnl)
	}
}

func TestApplyFillPartialReduce(t *testing.T) {
	first := ApplyFill(nil, fill(model.SideBuy, "10", "100"))
	res := ApplyFill(first.Open, fill(model.SideSell, "4", "110"))

	if !res.Open.Size.Equal(d("6")) {
		t.Fatalf("size after reduce mismatch. got=%s want=6", res.Open.Size)
	}
	if !res.Open.EntryPrice.Equal(d("100")) {
		t.Fatalf("entry price must not change on reduce. got=%s", res.Open.EntryPrice)
	}
	if !res.RealizedPnl.Equal(d("40")) {
		t.Fatalf("realized pnl mismatch. got=%s want=40", res.RealizedPnl)
	}
	if !res.ReducedSize.Equal(d("4")) || !res.ReducedEntry.Equal(d("100")) {
		t.Fatalf("reduced portion mismatch: size=%s entry=%s", res.ReducedSize, res.ReducedEntry)
	}
}

func TestApplyFillFullClose(t *testing.T) {
	first := ApplyFill(nil, fill(model.SideBuy, "10", "100"))
	res := ApplyFill(first.Open, fill(model.SideSell, "10", "100"))

	if res.Open != nil {
		t.Fatalf("book should be flat after a full close, got %+v", res.Open)
	}
	if res.Closed == nil || res.Closed.IsOpen || res.Closed.ClosedAt == nil {
		t.Fatalf("closed position not finalized: %+v", res.Closed)
	}
	if !res.RealizedPnl.IsZero() {
		t.Fatalf("closing at entry price must realize zero, got %s", res.RealizedPnl)
	}
}

func TestApplyFillFlip(t *testing.T) {
	first := ApplyFill(nil, fill(model.SideBuy, "10", "100"))
	res := ApplyFill(first.Open, fill(model.SideSell, "15", "110"))

	if !res.RealizedPnl.Equal(d("100")) {
		t.Fatalf("realized pnl on flip mismatch. got=%s want=100", res.RealizedPnl)
	}
	if res.Closed == nil || res.Closed.IsOpen {
		t.Fatalf("old position must be closed on flip: %+v", res.Closed)
	}
	if res.Open == nil || !res.Opened {
		t.Fatalf("flip must open the remainder: %+v", res)
	}
	if res.Open.Side != model.SideSell {
		t.Fatalf("flipped position side mismatch. got=%s want=sell", res.Open.Side)
	}
	if !res.Open.Size.Equal(d("5")) || !res.Open.EntryPrice.Equal(d("110")) {
		t.Fatalf("flipped position mismatch: size=%s entry=%s", res.Open.Size, res.Open.EntryPrice)
	}
	if !res.ReducedSize.Equal(d("10")) || !res.ReducedEntry.Equal(d("100")) {
		t.Fatalf("reduced portion mismatch: size=%s entry=%s", res.ReducedSize, res.ReducedEntry)
	}
}

func TestApplyFillSellSidePnl(t *testing.T) {
	first := ApplyFill(nil, fill(model.SideSell, "10", "100"))
	res := ApplyFill(first.Open, fill(model.SideBuy, "10", "90"))

	if !res.RealizedPnl.Equal(d("100")) {
		t.Fatalf("sell-side pnl mismatch. got=%s want=100", res.RealizedPnl)
	}
}

func TestRealizedPnlAccumulatesAcrossReductions(t *testing.T) {
	first := ApplyFill(nil, fill(model.SideBuy, "10", "100"))
	second := ApplyFill(first.Open, fill(model.SideSell, "4", "110"))
	third := ApplyFill(second.Open, fill(model.SideSell, "6", "120"))

	if third.Closed == nil {
		t.Fatalf("expected position closed after final reduction")
	}
	// 4*(110-100) + 6*(120-100)
	if !third.Closed.RealizedPnl.Equal(d("160")) {
		t.Fatalf("accumulated realized pnl mismatch. got=%s want=160", third.Closed.RealizedPnl)
	}
}
