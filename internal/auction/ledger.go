package auction

import (
	"context"
	"errors"
	"time"

	"github.com/campusbid/auction-service/internal/model"
)

// Ledger contract errors.  Implementations translate their storage
// failures into these so the core never inspects driver errors.
var (
	ErrItemNotFound    = errors.New("item not found")
	ErrItemUnavailable = errors.New("item already has an active auction")
)

// Tx is the view of the ledger available while holding exclusive
// access to one auction's row.  The auction returned by Auction() may
// be mutated freely; all changes, together with any bids inserted and
// item updates requested, are committed atomically when the Mutate
// callback returns nil.  A non-nil return aborts the whole attempt
// with no visible mutation.
type Tx interface {
	// Auction returns the exclusively held auction record.
	Auction() *model.Auction
	// InsertBid stages a new immutable bid row.
	InsertBid(ctx context.Context, b *model.Bid) error
	// LeadingBid returns the highest bid for the auction, ties broken
	// by earliest created_at, or nil when no bids exist.  BidderName
	// is populated.
	LeadingBid(ctx context.Context) (*model.Bid, error)
	// SetItemStatus stages a status change on the auctioned item.
	SetItemStatus(ctx context.Context, itemID, status string) error
}

// Ledger is the durable source of truth for auctions and bids.  Mutate
// is the single concurrency boundary of the system: it runs fn with
// exclusive access to exactly one auction's row for the duration of
// the read-validate-write sequence.  Rows of different auctions are
// independent; Mutate must never serialize unrelated auctions.
//
// A Mutate call that cannot acquire the row within a bounded time
// fails with ErrConflict rather than blocking indefinitely.
type Ledger interface {
	Mutate(ctx context.Context, auctionID string, fn func(tx Tx) error) error

	// CreateAuction inserts a new auction and atomically flips the
	// underlying item to in_auction.  Returns ErrItemNotFound or
	// ErrItemUnavailable when the item reference cannot be consumed.
	CreateAuction(ctx context.Context, a *model.Auction) error

	// Auction loads a single auction record without locking it.
	Auction(ctx context.Context, id string) (*model.Auction, error)

	// Item loads a single item record.
	Item(ctx context.Context, id string) (*model.Item, error)

	// DueAuctionIDs lists active auctions whose deadline has passed.
	DueAuctionIDs(ctx context.Context, now time.Time) ([]string, error)

	// EndingSoon lists active auctions whose deadline falls within
	// (now, now+window].  Used only for the advisory broadcast.
	EndingSoon(ctx context.Context, now time.Time, window time.Duration) ([]model.Auction, error)
}
