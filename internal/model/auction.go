package model

import "time"

// Auction statuses.  The lifecycle is strictly monotonic:
// upcoming -> active -> ended|cancelled.  Ended and cancelled are
// terminal; an auction is never deleted, only cancelled.
const (
	AuctionUpcoming  = "upcoming"
	AuctionActive    = "active"
	AuctionEnded     = "ended"
	AuctionCancelled = "cancelled"
)

// Auction represents one item under sale.  It mirrors the `auctions`
// table.  CurrentPrice is monotonically non-decreasing and always at
// least StartingPrice.  EndTime may move forward under the soft-close
// policy but never precedes OriginalEndTime, which is kept for audit.
// WinnerID is set exactly once, by settlement, and only when the
// auction ends with a reserve-satisfying leading bid.
//
// Fields:
//  ID              – primary key (uuid).
//  ItemID          – item being sold.
//  SellerID        – user who listed the item.
//  StartingPrice   – opening price (> 0).
//  ReservePrice    – optional minimum acceptable winning price.
//  CurrentPrice    – leading price; equals StartingPrice until the first bid.
//  MinIncrement    – minimum step over CurrentPrice for the next bid.
//  StartTime       – when bidding opened.
//  EndTime         – current deadline (mutable, extends on late bids).
//  OriginalEndTime – deadline as published by the seller (immutable).
//  Status          – see constants above.
//  WinnerID        – winning bidder, nil until settled or when reserve unmet.
//  TotalBids       – count of accepted bids.
type Auction struct {
	ID              string    `json:"id"`
	ItemID          string    `json:"item_id"`
	SellerID        string    `json:"seller_id"`
	StartingPrice   float64   `json:"starting_price"`
	ReservePrice    *float64  `json:"reserve_price,omitempty"`
	CurrentPrice    float64   `json:"current_price"`
	MinIncrement    float64   `json:"min_bid_increment"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	OriginalEndTime time.Time `json:"original_end_time"`
	Status          string    `json:"status"`
	WinnerID        *string   `json:"winner_id,omitempty"`
	TotalBids       int       `json:"total_bids"`
	CreatedAt       time.Time `json:"created_at"`
}

// Terminal reports whether the auction has reached a final state.
func (a *Auction) Terminal() bool {
	return a.Status == AuctionEnded || a.Status == AuctionCancelled
}

// MinBid returns the smallest amount the next bid must reach.
func (a *Auction) MinBid() float64 {
	return a.CurrentPrice + a.MinIncrement
}
