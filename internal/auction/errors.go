// Package auction implements the bidding and settlement core: the
// pure bid validator, the bid processor and the settlement engine.
// All durable state lives behind the Ledger interface; this package
// owns the invariants, not the storage.
package auction

import (
	"errors"
	"fmt"
)

// Rejections are caller-fixable outcomes of a bid attempt.  They are
// returned as typed values, never logged as faults.
var (
	ErrNotActive = errors.New("auction is not active")
	ErrEnded     = errors.New("auction has ended")
	ErrSelfBid   = errors.New("sellers cannot bid on their own items")
)

// Lookup and authorization errors.
var (
	ErrNotFound  = errors.New("auction not found")
	ErrForbidden = errors.New("not authorized")
)

// ErrInvalidPrice rejects a listing whose starting price is not
// strictly positive.
var ErrInvalidPrice = errors.New("starting price must be positive")

// ErrConflict signals lock-acquisition timeout or a concurrent-write
// conflict.  The attempt failed cleanly with no partial mutation and
// the caller may retry.
var ErrConflict = errors.New("conflicting concurrent update, retry")

// BidTooLowError rejects a bid below the current floor.  MinBid is
// the computed minimum acceptable amount so the caller can pre-fill
// a retry.
type BidTooLowError struct {
	MinBid float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be at least %.2f", e.MinBid)
}

// IsRejection reports whether err is an expected bid rejection as
// opposed to a system fault.
func IsRejection(err error) bool {
	var tooLow *BidTooLowError
	return errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrEnded) ||
		errors.Is(err, ErrSelfBid) ||
		errors.As(err, &tooLow)
}
