package auction

import (
	"time"

	"github.com/campusbid/auction-service/internal/model"
)

// Event kinds carried on the per-auction broadcast topics.
const (
	EventNewBid       = "new_bid"
	EventAuctionEnded = "auction_ended"
	EventEndingSoon   = "auction_ending_soon"
)

// NewBidEvent is emitted after a bid commits.
type NewBidEvent struct {
	AuctionID    string    `json:"auction_id"`
	Bid          model.Bid `json:"bid"`
	CurrentPrice float64   `json:"current_price"`
	TotalBids    int       `json:"total_bids"`
	EndTime      time.Time `json:"end_time"`
}

// AuctionEndedEvent is emitted exactly once per auction, after the
// terminal transition commits.  WinnerID and WinnerName are nil when
// the reserve was not met or no bids were placed.
type AuctionEndedEvent struct {
	AuctionID  string  `json:"auction_id"`
	WinnerID   *string `json:"winner_id"`
	WinnerName *string `json:"winner_name"`
	FinalPrice float64 `json:"final_price"`
}

// EndingSoonEvent is a best-effort advisory; no core invariant
// depends on it.
type EndingSoonEvent struct {
	AuctionID     string    `json:"auction_id"`
	TimeRemaining int64     `json:"time_remaining_ms"`
	EndTime       time.Time `json:"end_time"`
}

// EventSink receives domain events after the mutation that produced
// them has committed.  Delivery is best-effort: implementations must
// not block the caller and must never fail a committed operation.
type EventSink interface {
	NewBid(ev NewBidEvent)
	AuctionEnded(ev AuctionEndedEvent)
	EndingSoon(ev EndingSoonEvent)
}

// Sinks fans events out to several sinks in order.
type Sinks []EventSink

func (s Sinks) NewBid(ev NewBidEvent) {
	for _, sink := range s {
		sink.NewBid(ev)
	}
}

func (s Sinks) AuctionEnded(ev AuctionEndedEvent) {
	for _, sink := range s {
		sink.AuctionEnded(ev)
	}
}

func (s Sinks) EndingSoon(ev EndingSoonEvent) {
	for _, sink := range s {
		sink.EndingSoon(ev)
	}
}
