package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/campusbid/auction-service/internal/model"
)

// DefaultSoftClose is the anti-sniping window: a bid accepted with
// less than this much time remaining pushes the deadline out to
// acceptance time + window.
const DefaultSoftClose = 2 * time.Minute

// DefaultMinIncrement applies when a seller omits the increment.
const DefaultMinIncrement = 10

// Service is the bid processor.  It orchestrates one bid attempt end
// to end: exclusive access to the auction row, validation, the
// soft-close extension, the atomic ledger mutation and the domain
// event.  It also owns auction creation.
type Service struct {
	ledger    Ledger
	events    EventSink
	softClose time.Duration

	now func() time.Time // stubbed in tests
}

// NewService builds a bid processor.  events may be nil when no
// broadcast is wanted.  softClose <= 0 selects DefaultSoftClose.
func NewService(ledger Ledger, events EventSink, softClose time.Duration) *Service {
	if softClose <= 0 {
		softClose = DefaultSoftClose
	}
	if events == nil {
		events = Sinks(nil)
	}
	return &Service{
		ledger:    ledger,
		events:    events,
		softClose: softClose,
		now:       time.Now,
	}
}

// CreateParams carries the seller-supplied fields of a new auction.
type CreateParams struct {
	ItemID        string
	StartingPrice float64
	ReservePrice  *float64
	MinIncrement  float64
	EndTime       time.Time
}

// CreateAuction publishes a listing for bidding.  The caller must own
// the item (admins may act for any seller).  The auction row and the
// item's in_auction flip commit atomically; an item that is already
// under auction yields ErrItemUnavailable.  The starting price must be
// strictly positive, it seeds current_price.
func (s *Service) CreateAuction(ctx context.Context, seller model.Principal, p CreateParams) (*model.Auction, error) {
	if p.StartingPrice <= 0 {
		return nil, ErrInvalidPrice
	}
	item, err := s.ledger.Item(ctx, p.ItemID)
	if err != nil {
		return nil, err
	}
	if item.SellerID != seller.ID && !seller.Admin() {
		return nil, ErrForbidden
	}

	now := s.now().UTC()
	inc := p.MinIncrement
	if inc <= 0 {
		inc = DefaultMinIncrement
	}
	a := &model.Auction{
		ID:              uuid.NewString(),
		ItemID:          item.ID,
		SellerID:        item.SellerID,
		StartingPrice:   p.StartingPrice,
		ReservePrice:    p.ReservePrice,
		CurrentPrice:    p.StartingPrice,
		MinIncrement:    inc,
		StartTime:       now,
		EndTime:         p.EndTime.UTC(),
		OriginalEndTime: p.EndTime.UTC(),
		Status:          model.AuctionActive,
		CreatedAt:       now,
	}
	if err := s.ledger.CreateAuction(ctx, a); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"auction_id": a.ID,
		"item_id":    a.ItemID,
		"seller_id":  a.SellerID,
		"end_time":   a.EndTime,
	}).Info("auction created")
	return a, nil
}

// PlaceBid executes one bid attempt.  On acceptance it returns the
// stored bid and a snapshot of the auction as mutated by it; on
// rejection it returns the typed reason with no mutation.  The whole
// read-validate-write sequence runs while holding the auction's row,
// so accepted bids are linearized per auction and always validated
// against the most recently committed price.
func (s *Service) PlaceBid(ctx context.Context, auctionID string, bidder model.Principal, amount float64) (*model.Bid, *model.Auction, error) {
	var (
		bid  *model.Bid
		snap *model.Auction
	)
	err := s.ledger.Mutate(ctx, auctionID, func(tx Tx) error {
		a := tx.Auction()
		now := s.now().UTC()
		if err := ValidateBid(a, bidder, amount, now); err != nil {
			return err
		}

		b := &model.Bid{
			ID:         uuid.NewString(),
			AuctionID:  a.ID,
			BidderID:   bidder.ID,
			BidderName: bidder.Name,
			Amount:     amount,
			CreatedAt:  now,
		}
		if err := tx.InsertBid(ctx, b); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}

		// Soft close: a bid landing inside the window re-anchors the
		// deadline at acceptance time.  Every qualifying late bid
		// extends again, so no single last-moment bid can snipe.
		if a.EndTime.Sub(now) < s.softClose {
			a.EndTime = now.Add(s.softClose)
		}
		a.CurrentPrice = amount
		a.TotalBids++

		bid = b
		cp := *a
		snap = &cp
		return nil
	})
	if err != nil {
		if IsRejection(err) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("place bid on %s: %w", auctionID, err)
	}

	log.WithFields(log.Fields{
		"auction_id": auctionID,
		"bidder_id":  bidder.ID,
		"amount":     amount,
		"total_bids": snap.TotalBids,
	}).Info("bid accepted")

	s.events.NewBid(NewBidEvent{
		AuctionID:    auctionID,
		Bid:          *bid,
		CurrentPrice: snap.CurrentPrice,
		TotalBids:    snap.TotalBids,
		EndTime:      snap.EndTime,
	})
	return bid, snap, nil
}
