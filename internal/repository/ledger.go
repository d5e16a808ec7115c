package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campusbid/auction-service/internal/auction"
	"github.com/campusbid/auction-service/internal/model"
)

// lockTimeout bounds how long a mutation waits for an auction's row
// before giving up with a retryable conflict.
const lockTimeout = 5 * time.Second

// Ledger is the MySQL implementation of auction.Ledger.  It owns
// transaction boundaries: callers never see *sql.Tx.  Exclusive
// access to one auction is a SELECT ... FOR UPDATE row lock held for
// the duration of the read-validate-write sequence; rows of different
// auctions never contend.
type Ledger struct {
	db       *sql.DB
	Auctions *AuctionRepo
	Bids     *BidRepo
	Items    *ItemRepo
}

// NewLedger wires the per-entity repos over one pool.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{
		db:       db,
		Auctions: NewAuctionRepo(db),
		Bids:     NewBidRepo(db),
		Items:    NewItemRepo(db),
	}
}

// ledgerTx adapts one open transaction plus the locked auction row to
// the auction.Tx view.
type ledgerTx struct {
	l  *Ledger
	tx *sql.Tx
	a  *model.Auction
}

func (t *ledgerTx) Auction() *model.Auction { return t.a }

func (t *ledgerTx) InsertBid(ctx context.Context, b *model.Bid) error {
	return t.l.Bids.InsertTx(ctx, t.tx, b)
}

func (t *ledgerTx) LeadingBid(ctx context.Context) (*model.Bid, error) {
	return t.l.Bids.LeadingTx(ctx, t.tx, t.a.ID)
}

func (t *ledgerTx) SetItemStatus(ctx context.Context, itemID, status string) error {
	return t.l.Items.SetStatusTx(ctx, t.tx, itemID, status)
}

// Mutate runs fn while holding the auction's row lock, then writes
// back the (possibly mutated) auction and commits.  Any error from fn
// rolls the whole transaction back, so either every staged change
// becomes visible or none does.  A row held past the lock budget, by
// timeout or deadlock, surfaces as auction.ErrConflict.
func (l *Ledger) Mutate(parent context.Context, auctionID string, fn func(tx auction.Tx) error) error {
	ctx, cancel := context.WithTimeout(parent, lockTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", translateBudgetErr(parent, err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := l.Auctions.GetForUpdateTx(ctx, tx, auctionID)
	if err != nil {
		return translateBudgetErr(parent, err)
	}
	if err := fn(&ledgerTx{l: l, tx: tx, a: a}); err != nil {
		return translateBudgetErr(parent, err)
	}
	if err := l.Auctions.UpdateTx(ctx, tx, a); err != nil {
		return fmt.Errorf("update auction: %w", translateBudgetErr(parent, err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translateBudgetErr(parent, translateLockErr(err)))
	}
	committed = true
	return nil
}

// CreateAuction inserts the auction and flips the item to in_auction
// in one transaction.  The item row is locked first so two concurrent
// creations for the same item cannot both succeed.
func (l *Ledger) CreateAuction(ctx context.Context, a *model.Auction) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	it, err := l.Items.GetForUpdateTx(ctx, tx, a.ItemID)
	if err != nil {
		return err
	}
	if it.Status != model.ItemListed {
		return auction.ErrItemUnavailable
	}
	if err := l.Auctions.InsertTx(ctx, tx, a); err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}
	if err := l.Items.SetStatusTx(ctx, tx, it.ID, model.ItemInAuction); err != nil {
		return fmt.Errorf("flag item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Auction loads a single auction without locking.
func (l *Ledger) Auction(ctx context.Context, id string) (*model.Auction, error) {
	return l.Auctions.GetByID(ctx, id)
}

// Item loads a single item.
func (l *Ledger) Item(ctx context.Context, id string) (*model.Item, error) {
	return l.Items.GetByID(ctx, id)
}

// DueAuctionIDs lists active auctions past their deadline.
func (l *Ledger) DueAuctionIDs(ctx context.Context, now time.Time) ([]string, error) {
	return l.Auctions.DueIDs(ctx, now)
}

// EndingSoon lists active auctions ending within the window.
func (l *Ledger) EndingSoon(ctx context.Context, now time.Time, window time.Duration) ([]model.Auction, error) {
	return l.Auctions.EndingWithin(ctx, now, window)
}
