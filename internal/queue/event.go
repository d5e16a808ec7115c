// Package queue publishes and consumes settlement audit records over
// RabbitMQ.
package queue

// settledQueueName is the durable queue carrying one record per
// settled auction.
const settledQueueName = "auction.settled"

// AuctionSettledEvent is the audit record emitted after an auction is
// settled. It carries enough for downstream consumers to log or notify
// without querying the primary database.
type AuctionSettledEvent struct {
	AuctionID  string  `json:"auction_id"`
	WinnerID   string  `json:"winner_id,omitempty"`
	WinnerName string  `json:"winner_name,omitempty"`
	FinalPrice float64 `json:"final_price"`
	SettledAt  string  `json:"settled_at"`
}
