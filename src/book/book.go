// Package book implements the position book: one open position per
// (user, symbol), merged and reduced by fills. The functions here are pure
// position arithmetic; loading and persisting rows is the engine's job.
package book

import (
	"time"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

// Fill is a single execution applied to the book.
type Fill struct {
	UserID uint
	Symbol string
	Side   string
	Size   decimal.Decimal
	Price  decimal.Decimal
	At     time.Time
}

// Result describes what a fill did to the book.
//
// ReducedSize/ReducedEntry report the slice of pre-existing exposure the
// fill consumed; the ledger uses them to release the margin that backed it.
// RealizedPnl is zero when the fill only opened or increased a position.
type Result struct {
	// Open is the position left open after the fill, nil if the book is
	// now flat for this symbol.
	Open *model.Position

	// Opened reports that Open was created by this fill (new symbol or the
	// surviving leg of a flip).
	Opened bool

	// Closed is the pre-existing position if this fill fully closed it.
	Closed *model.Position

	RealizedPnl  decimal.Decimal
	ReducedSize  decimal.Decimal
	ReducedEntry decimal.Decimal
}

// ApplyFill merges a fill into the existing open position for the fill's
// (user, symbol), which may be nil. The matching rules:
//
//   - no position: open one at the fill price
//   - same side: increase size, entry price becomes the volume-weighted average
//   - opposite side, smaller: reduce, realizing P&L on the closed portion
//   - opposite side, equal: close
//   - opposite side, larger: close, then open the remainder in the new
//     direction at the fill price (flip)
func ApplyFill(existing *model.Position, fill Fill) Result {
	if existing == nil || !existing.IsOpen {
		opened := newPosition(fill)
		return Result{
			Open:         opened,
			Opened:       true,
			RealizedPnl:  decimal.Zero,
			ReducedSize:  decimal.Zero,
			ReducedEntry: decimal.Zero,
		}
	}

	existing.CurrentPrice = fill.Price

	if existing.Side == fill.Side {
		oldNotional := existing.Size.Mul(existing.EntryPrice)
		fillNotional := fill.Size.Mul(fill.Price)
		newSize := existing.Size.Add(fill.Size)

		existing.EntryPrice = oldNotional.Add(fillNotional).Div(newSize)
		existing.Size = newSize

		return Result{
			Open:         existing,
			RealizedPnl:  decimal.Zero,
			ReducedSize:  decimal.Zero,
			ReducedEntry: decimal.Zero,
		}
	}

	// Opposite side: the fill consumes existing exposure first.
	switch fill.Size.Cmp(existing.Size) {
	case -1: // partial reduction
		pnl := model.PnlAt(existing.Side, existing.EntryPrice, fill.Price, fill.Size)
		existing.Size = existing.Size.Sub(fill.Size)
		existing.RealizedPnl = existing.RealizedPnl.Add(pnl)

		return Result{
			Open:         existing,
			RealizedPnl:  pnl,
			ReducedSize:  fill.Size,
			ReducedEntry: existing.EntryPrice,
		}

	case 0: // full close
		pnl := closeOut(existing, fill)

		return Result{
			Closed:       existing,
			RealizedPnl:  pnl,
			ReducedSize:  fill.Size,
			ReducedEntry: existing.EntryPrice,
		}

	default: // flip: close the old position, open the remainder opposite
		closedSize := existing.Size
		closedEntry := existing.EntryPrice
		pnl := closeOut(existing, fill)

		remainder := fill
		remainder.Size = fill.Size.Sub(closedSize)
		opened := newPosition(remainder)

		return Result{
			Open:         opened,
			Opened:       true,
			Closed:       existing,
			RealizedPnl:  pnl,
			ReducedSize:  closedSize,
			ReducedEntry: closedEntry,
		}
	}
}

func newPosition(fill Fill) *model.Position {
	return &model.Position{
		UserID:       fill.UserID,
		Symbol:       fill.Symbol,
		Side:         fill.Side,
		Size:         fill.Size,
		EntryPrice:   fill.Price,
		CurrentPrice: fill.Price,
		RealizedPnl:  decimal.Zero,
		IsOpen:       true,
		OpenedAt:     fill.At,
	}
}

func closeOut(position *model.Position, fill Fill) decimal.Decimal {
	pnl := model.PnlAt(position.Side, position.EntryPrice, fill.Price, position.Size)

	closedAt := fill.At
	position.Size = decimal.Zero
	position.RealizedPnl = position.RealizedPnl.Add(pnl)
	position.IsOpen = false
	position.ClosedAt = &closedAt

	return pnl
}
