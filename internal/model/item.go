package model

import "time"

// Item statuses.  An item moves to in_auction when an auction is
// created for it and back to listed (reserve unmet / no bids) or to
// sold when the auction settles.
const (
	ItemListed    = "listed"
	ItemInAuction = "in_auction"
	ItemSold      = "sold"
)

// Item mirrors the `items` table.  Item CRUD is a collaborator of the
// auction core: creating an auction consumes an item reference and
// settlement mirrors the outcome onto Status.
type Item struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
