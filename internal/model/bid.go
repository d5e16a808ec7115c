package model

import "time"

// Bid is an immutable record of one offer on an auction.  Bids are
// never updated or deleted; the leading bid for an auction is always
// derivable as max(Amount), ties broken by earliest CreatedAt.
//
// BidderName is not a column of the `bids` table; it is joined from
// users when loading history so the presentation layer never needs a
// second lookup.
type Bid struct {
	ID         string    `json:"id"`
	AuctionID  string    `json:"auction_id"`
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name,omitempty"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}
