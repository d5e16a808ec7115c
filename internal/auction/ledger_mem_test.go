package auction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campusbid/auction-service/internal/model"
)

// memLedger is an in-memory Ledger used by the core tests.  Mutate
// holds a per-auction mutex for the duration of the callback, giving
// the same exclusive-access semantics as the SQL row lock.
type memLedger struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	auctions map[string]model.Auction
	bids     map[string][]model.Bid
	items    map[string]model.Item
}

func newMemLedger() *memLedger {
	return &memLedger{
		locks:    make(map[string]*sync.Mutex),
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
		items:    make(map[string]model.Item),
	}
}

func (l *memLedger) addAuction(a model.Auction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.auctions[a.ID] = a
	if _, ok := l.locks[a.ID]; !ok {
		l.locks[a.ID] = &sync.Mutex{}
	}
}

func (l *memLedger) addItem(it model.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[it.ID] = it
}

func (l *memLedger) auctionLock(id string) (*sync.Mutex, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[id]
	return lk, ok
}

type memTx struct {
	ledger *memLedger
	a      *model.Auction

	stagedBids  []model.Bid
	stagedItems map[string]string
}

func (t *memTx) Auction() *model.Auction { return t.a }

func (t *memTx) InsertBid(_ context.Context, b *model.Bid) error {
	t.stagedBids = append(t.stagedBids, *b)
	return nil
}

func (t *memTx) LeadingBid(_ context.Context) (*model.Bid, error) {
	t.ledger.mu.Lock()
	all := append([]model.Bid(nil), t.ledger.bids[t.a.ID]...)
	t.ledger.mu.Unlock()
	all = append(all, t.stagedBids...)
	if len(all) == 0 {
		return nil, nil
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Amount != all[j].Amount {
			return all[i].Amount > all[j].Amount
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	lead := all[0]
	return &lead, nil
}

func (t *memTx) SetItemStatus(_ context.Context, itemID, status string) error {
	t.stagedItems[itemID] = status
	return nil
}

func (l *memLedger) Mutate(_ context.Context, auctionID string, fn func(tx Tx) error) error {
	lk, ok := l.auctionLock(auctionID)
	if !ok {
		return ErrNotFound
	}
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	a := l.auctions[auctionID]
	l.mu.Unlock()

	tx := &memTx{ledger: l, a: &a, stagedItems: make(map[string]string)}
	if err := fn(tx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.auctions[auctionID] = a
	l.bids[auctionID] = append(l.bids[auctionID], tx.stagedBids...)
	for id, status := range tx.stagedItems {
		it := l.items[id]
		it.Status = status
		l.items[id] = it
	}
	return nil
}

func (l *memLedger) CreateAuction(_ context.Context, a *model.Auction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.items[a.ItemID]
	if !ok {
		return ErrItemNotFound
	}
	if it.Status != model.ItemListed {
		return ErrItemUnavailable
	}
	it.Status = model.ItemInAuction
	l.items[a.ItemID] = it
	l.auctions[a.ID] = *a
	l.locks[a.ID] = &sync.Mutex{}
	return nil
}

func (l *memLedger) Auction(_ context.Context, id string) (*model.Auction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.auctions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (l *memLedger) Item(_ context.Context, id string) (*model.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &it, nil
}

func (l *memLedger) DueAuctionIDs(_ context.Context, now time.Time) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var due []string
	for id, a := range l.auctions {
		if a.Status == model.AuctionActive && !a.EndTime.After(now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	return due, nil
}

func (l *memLedger) EndingSoon(_ context.Context, now time.Time, window time.Duration) ([]model.Auction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var soon []model.Auction
	for _, a := range l.auctions {
		if a.Status == model.AuctionActive && a.EndTime.After(now) && !a.EndTime.After(now.Add(window)) {
			soon = append(soon, a)
		}
	}
	sort.Slice(soon, func(i, j int) bool { return soon[i].ID < soon[j].ID })
	return soon, nil
}

// recSink records every event it receives, safe for concurrent use.
type recSink struct {
	mu     sync.Mutex
	bids   []NewBidEvent
	ended  []AuctionEndedEvent
	soon   []EndingSoonEvent
}

func (r *recSink) NewBid(ev NewBidEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids = append(r.bids, ev)
}

func (r *recSink) AuctionEnded(ev AuctionEndedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, ev)
}

func (r *recSink) EndingSoon(ev EndingSoonEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.soon = append(r.soon, ev)
}

func (r *recSink) bidEvents() []NewBidEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NewBidEvent(nil), r.bids...)
}

func (r *recSink) endedEvents() []AuctionEndedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuctionEndedEvent(nil), r.ended...)
}

func (r *recSink) soonEvents() []EndingSoonEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EndingSoonEvent(nil), r.soon...)
}
