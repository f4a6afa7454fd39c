package engine

import (
	"errors"

	"tradesim/src/ledger"
	"tradesim/src/oracle"
)

// Typed failures returned by engine entry points. Validation and solvency
// failures never mutate state and are never retried by the engine itself.
var (
	// ErrInvalidOrder rejects a malformed order (bad side, size or type).
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInsufficientMargin rejects an order whose required margin exceeds
	// the wallet's free margin.
	ErrInsufficientMargin = ledger.ErrInsufficientMargin

	// ErrPriceUnavailable means the price oracle has no quote. Retryable.
	ErrPriceUnavailable = oracle.ErrPriceUnavailable

	// ErrPositionNotFound means no open position with that id belongs to
	// the user.
	ErrPositionNotFound = errors.New("position not found")

	// ErrOrderNotFound means no order with that id belongs to the user.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnauthorized rejects a caller without the capability for the
	// requested account.
	ErrUnauthorized = errors.New("caller not permitted")

	// ErrInvariantViolation surfaces an internal accounting inconsistency.
	ErrInvariantViolation = ledger.ErrInvariantViolation
)
