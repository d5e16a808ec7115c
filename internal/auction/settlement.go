package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/campusbid/auction-service/internal/model"
)

// Outcome records the result of settling one auction.  WinnerID and
// WinnerName are nil when the reserve was unmet or no bids were
// placed.  AlreadySettled marks a redundant invocation that found the
// auction terminal: nothing was mutated and no event was emitted.
type Outcome struct {
	AuctionID  string
	WinnerID   *string
	WinnerName *string
	FinalPrice float64

	AlreadySettled bool
}

// AuditSink receives a durable copy of every settlement for offline
// consumers.  Failures are logged, never propagated: the terminal
// transition has already committed.
type AuditSink interface {
	AuctionSettled(ctx context.Context, out Outcome) error
}

// Settler performs the terminal, at-most-once transition of an
// auction from active to ended.  Both the periodic scan and the
// explicit "end now" request funnel through Settle, whose
// status-guarded atomic transition makes redundant invocations
// harmless.
type Settler struct {
	ledger Ledger
	events EventSink
	audit  AuditSink

	now func() time.Time
}

// NewSettler builds a settlement engine.  events and audit may be nil.
func NewSettler(ledger Ledger, events EventSink, audit AuditSink) *Settler {
	if events == nil {
		events = Sinks(nil)
	}
	return &Settler{ledger: ledger, events: events, audit: audit, now: time.Now}
}

// Settle determines the winner of an auction and commits the terminal
// state exactly once.  Invoked again for the same auction it is a
// no-op returning the already-determined outcome: the status check
// runs inside the same critical section that flips it, which is what
// gives at-most-once settlement under at-least-once invocation.
func (s *Settler) Settle(ctx context.Context, auctionID string) (*Outcome, error) {
	var out *Outcome
	err := s.ledger.Mutate(ctx, auctionID, func(tx Tx) error {
		a := tx.Auction()
		if a.Terminal() {
			out = &Outcome{
				AuctionID:      a.ID,
				WinnerID:       a.WinnerID,
				FinalPrice:     a.CurrentPrice,
				AlreadySettled: true,
			}
			return nil
		}
		if a.Status != model.AuctionActive {
			// Only active auctions settle; upcoming never skips
			// straight to ended.
			return ErrNotActive
		}

		lead, err := tx.LeadingBid(ctx)
		if err != nil {
			return fmt.Errorf("leading bid: %w", err)
		}
		reserveMet := a.ReservePrice == nil || (lead != nil && lead.Amount >= *a.ReservePrice)

		final := a.StartingPrice
		var winnerID, winnerName *string
		if lead != nil {
			final = lead.Amount
			if reserveMet {
				winnerID = &lead.BidderID
				winnerName = &lead.BidderName
			}
		}

		a.Status = model.AuctionEnded
		a.WinnerID = winnerID

		itemStatus := model.ItemListed // relist when unsold
		if winnerID != nil {
			itemStatus = model.ItemSold
		}
		if err := tx.SetItemStatus(ctx, a.ItemID, itemStatus); err != nil {
			return fmt.Errorf("mirror item status: %w", err)
		}

		out = &Outcome{
			AuctionID:  a.ID,
			WinnerID:   winnerID,
			WinnerName: winnerName,
			FinalPrice: final,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settle auction %s: %w", auctionID, err)
	}
	if out.AlreadySettled {
		return out, nil
	}

	log.WithFields(log.Fields{
		"auction_id":  out.AuctionID,
		"winner_id":   deref(out.WinnerID),
		"final_price": out.FinalPrice,
	}).Info("auction settled")

	s.events.AuctionEnded(AuctionEndedEvent{
		AuctionID:  out.AuctionID,
		WinnerID:   out.WinnerID,
		WinnerName: out.WinnerName,
		FinalPrice: out.FinalPrice,
	})
	if s.audit != nil {
		if err := s.audit.AuctionSettled(ctx, *out); err != nil {
			log.WithFields(log.Fields{"auction_id": out.AuctionID}).
				WithError(err).Warn("settlement audit publish failed")
		}
	}
	return out, nil
}

// EndNow settles one auction on demand.  Only the auction's seller or
// an admin may end it early.
func (s *Settler) EndNow(ctx context.Context, auctionID string, caller model.Principal) (*Outcome, error) {
	a, err := s.ledger.Auction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.SellerID != caller.ID && !caller.Admin() {
		return nil, ErrForbidden
	}
	return s.Settle(ctx, auctionID)
}

// Cancel aborts an auction without determining a winner: status goes
// to cancelled and the item returns to listed.  Admin only.  Bids
// already placed stay on record.  Cancelling a terminal auction fails
// with ErrNotActive.
func (s *Settler) Cancel(ctx context.Context, auctionID string, caller model.Principal) error {
	if !caller.Admin() {
		return ErrForbidden
	}
	err := s.ledger.Mutate(ctx, auctionID, func(tx Tx) error {
		a := tx.Auction()
		if a.Terminal() {
			return ErrNotActive
		}
		a.Status = model.AuctionCancelled
		if err := tx.SetItemStatus(ctx, a.ItemID, model.ItemListed); err != nil {
			return fmt.Errorf("relist item: %w", err)
		}
		return nil
	})
	if err != nil {
		if IsRejection(err) || errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("cancel auction %s: %w", auctionID, err)
	}
	log.WithFields(log.Fields{"auction_id": auctionID, "admin_id": caller.ID}).Info("auction cancelled")
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Scanner drives settlement on a fixed interval.  Each pass settles
// every active auction past its deadline independently — a failure on
// one auction never aborts the rest — and emits one ending-soon
// advisory per deadline for auctions inside the advisory window.
type Scanner struct {
	ledger   Ledger
	settler  *Settler
	events   EventSink
	interval time.Duration
	advisory time.Duration

	// deadline already advertised per auction; a soft-close extension
	// produces a new deadline and therefore a fresh advisory.
	notified map[string]int64

	now func() time.Time
}

// NewScanner builds a settlement scanner.  interval <= 0 selects 10s,
// advisory <= 0 selects one minute.
func NewScanner(ledger Ledger, settler *Settler, events EventSink, interval, advisory time.Duration) *Scanner {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if advisory <= 0 {
		advisory = time.Minute
	}
	if events == nil {
		events = Sinks(nil)
	}
	return &Scanner{
		ledger:   ledger,
		settler:  settler,
		events:   events,
		interval: interval,
		advisory: advisory,
		notified: make(map[string]int64),
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled.  Start it once at process init;
// cancelling the context is the shutdown path.
func (s *Scanner) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	log.WithFields(log.Fields{"interval": s.interval.String()}).Info("settlement scanner started")
	for {
		select {
		case <-ctx.Done():
			log.Info("settlement scanner stopped")
			return
		case <-t.C:
			s.pass(ctx)
		}
	}
}

// pass executes one scan. It is not safe for concurrent use; Run is
// the only caller outside tests.
func (s *Scanner) pass(ctx context.Context) {
	now := s.now().UTC()

	due, err := s.ledger.DueAuctionIDs(ctx, now)
	if err != nil {
		log.WithError(err).Error("settlement scan query failed")
	}
	for _, id := range due {
		out, err := s.settler.Settle(ctx, id)
		if err != nil {
			// Left active; a later pass retries.
			log.WithFields(log.Fields{"auction_id": id}).WithError(err).Warn("settlement attempt failed")
			continue
		}
		if !out.AlreadySettled {
			delete(s.notified, id)
		}
	}

	soon, err := s.ledger.EndingSoon(ctx, now, s.advisory)
	if err != nil {
		log.WithError(err).Error("ending-soon query failed")
		return
	}
	for _, a := range soon {
		deadline := a.EndTime.Unix()
		if s.notified[a.ID] == deadline {
			continue
		}
		s.notified[a.ID] = deadline
		s.events.EndingSoon(EndingSoonEvent{
			AuctionID:     a.ID,
			TimeRemaining: a.EndTime.Sub(now).Milliseconds(),
			EndTime:       a.EndTime,
		})
	}
}
