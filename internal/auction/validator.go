package auction

import (
	"time"

	"github.com/campusbid/auction-service/internal/model"
)

// ValidateBid decides whether a proposed bid may be accepted against
// the given auction state.  It is a pure function: deterministic for
// its inputs and free of side effects, so it must run inside the same
// critical section that commits the bid — validating against a stale
// read would break the monotonic-price invariant.
//
// Checks run in a fixed order and the first failure wins:
//  1. the auction must be active;
//  2. the deadline must not have passed (the auction is then
//     no longer biddable but not yet settled);
//  3. the seller may never bid on their own auction;
//  4. the amount must reach current_price + min_bid_increment.
func ValidateBid(a *model.Auction, bidder model.Principal, amount float64, now time.Time) error {
	if a.Status != model.AuctionActive {
		return ErrNotActive
	}
	if now.After(a.EndTime) {
		return ErrEnded
	}
	if bidder.ID == a.SellerID {
		return ErrSelfBid
	}
	if min := a.MinBid(); amount < min {
		return &BidTooLowError{MinBid: min}
	}
	return nil
}
