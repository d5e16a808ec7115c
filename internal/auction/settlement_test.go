package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbid/auction-service/internal/model"
)

// recAudit records settlement audit calls; fail makes it error to
// prove audit failures never surface to callers.
type recAudit struct {
	mu   sync.Mutex
	outs []Outcome
	fail bool
}

func (r *recAudit) AuctionSettled(_ context.Context, out Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broker down")
	}
	r.outs = append(r.outs, out)
	return nil
}

func placeBids(t *testing.T, svc *Service, auctionID string, amounts ...float64) {
	t.Helper()
	for i, amount := range amounts {
		p := model.Principal{ID: "buyer-" + string(rune('1'+i)), Name: "Bidder " + string(rune('A'+i))}
		_, _, err := svc.PlaceBid(context.Background(), auctionID, p, amount)
		require.NoError(t, err)
	}
}

func TestSettleWithWinner(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	events := &recSink{}
	audit := &recAudit{}

	svc := NewService(ledger, nil, 2*time.Minute)
	svc.now = func() time.Time { return now }
	placeBids(t, svc, a.ID, 510, 530)

	settler := NewSettler(ledger, events, audit)
	out, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)

	require.NotNil(t, out.WinnerID)
	assert.Equal(t, "buyer-2", *out.WinnerID)
	assert.Equal(t, "Bidder B", *out.WinnerName)
	assert.Equal(t, 530.0, out.FinalPrice)
	assert.False(t, out.AlreadySettled)

	stored, err := ledger.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionEnded, stored.Status)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, "buyer-2", *stored.WinnerID)

	it, err := ledger.Item(context.Background(), a.ItemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemSold, it.Status)

	evs := events.endedEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, a.ID, evs[0].AuctionID)
	assert.Equal(t, 530.0, evs[0].FinalPrice)

	audit.mu.Lock()
	defer audit.mu.Unlock()
	require.Len(t, audit.outs, 1)
}

func TestSettleReserveUnmet(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	reserve := 1000.0
	a.ReservePrice = &reserve
	ledger.addAuction(a)
	events := &recSink{}

	svc := NewService(ledger, nil, 2*time.Minute)
	svc.now = func() time.Time { return now }
	placeBids(t, svc, a.ID, 510, 530)

	settler := NewSettler(ledger, events, nil)
	out, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)

	// Reserve unmet: no winner, but the final price records the
	// leading amount and the item goes back on the shelf.
	assert.Nil(t, out.WinnerID)
	assert.Equal(t, 530.0, out.FinalPrice)

	it, err := ledger.Item(context.Background(), a.ItemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemListed, it.Status)

	evs := events.endedEvents()
	require.Len(t, evs, 1)
	assert.Nil(t, evs[0].WinnerID)
}

func TestSettleReserveMet(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	reserve := 525.0
	a.ReservePrice = &reserve
	ledger.addAuction(a)

	svc := NewService(ledger, nil, 2*time.Minute)
	svc.now = func() time.Time { return now }
	placeBids(t, svc, a.ID, 510, 530)

	settler := NewSettler(ledger, nil, nil)
	out, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)

	require.NotNil(t, out.WinnerID)
	assert.Equal(t, "buyer-2", *out.WinnerID)
	assert.Equal(t, 530.0, out.FinalPrice)
}

func TestSettleNoBids(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	events := &recSink{}

	settler := NewSettler(ledger, events, nil)
	out, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)

	assert.Nil(t, out.WinnerID)
	assert.Equal(t, a.StartingPrice, out.FinalPrice)

	it, err := ledger.Item(context.Background(), a.ItemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemListed, it.Status)
	require.Len(t, events.endedEvents(), 1)
}

func TestSettleUpcomingIsRejected(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	a.Status = model.AuctionUpcoming
	ledger.addAuction(a)
	events := &recSink{}

	settler := NewSettler(ledger, events, nil)
	_, err := settler.Settle(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrNotActive)

	// Nothing moved: no terminal flip, no item mirror, no event.
	stored, err := ledger.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionUpcoming, stored.Status)

	it, err := ledger.Item(context.Background(), a.ItemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemInAuction, it.Status)

	assert.Empty(t, events.endedEvents())
}

func TestSettleIsIdempotent(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	events := &recSink{}
	audit := &recAudit{}

	svc := NewService(ledger, nil, 2*time.Minute)
	svc.now = func() time.Time { return now }
	placeBids(t, svc, a.ID, 510)

	settler := NewSettler(ledger, events, audit)
	first, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	require.False(t, first.AlreadySettled)

	second, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadySettled)
	assert.Equal(t, first.WinnerID, second.WinnerID)
	assert.Equal(t, first.FinalPrice, second.FinalPrice)

	// Exactly one terminal event and one audit record.
	assert.Len(t, events.endedEvents(), 1)
	audit.mu.Lock()
	defer audit.mu.Unlock()
	assert.Len(t, audit.outs, 1)
}

func TestSettleConcurrentInvocations(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	events := &recSink{}

	svc := NewService(ledger, nil, 2*time.Minute)
	svc.now = func() time.Time { return now }
	placeBids(t, svc, a.ID, 510)

	settler := NewSettler(ledger, events, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := settler.Settle(context.Background(), a.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, events.endedEvents(), 1)
}

func TestSettleAuditFailureIsNonFatal(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))

	settler := NewSettler(ledger, nil, &recAudit{fail: true})
	out, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, out.AlreadySettled)

	stored, err := ledger.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionEnded, stored.Status)
}

func TestEndNowAuthorization(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	settler := NewSettler(ledger, nil, nil)

	stranger := model.Principal{ID: "buyer-9", Role: model.RoleBuyer}
	_, err := settler.EndNow(context.Background(), a.ID, stranger)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = settler.EndNow(context.Background(), "missing", stranger)
	assert.ErrorIs(t, err, ErrNotFound)

	seller := model.Principal{ID: "seller-1", Role: model.RoleSeller}
	out, err := settler.EndNow(context.Background(), a.ID, seller)
	require.NoError(t, err)
	assert.False(t, out.AlreadySettled)

	// An admin may re-invoke; the outcome is the settled one.
	admin := model.Principal{ID: "root", Role: model.RoleAdmin}
	out, err = settler.EndNow(context.Background(), a.ID, admin)
	require.NoError(t, err)
	assert.True(t, out.AlreadySettled)
}

func TestCancel(t *testing.T) {
	now := fixedNow()
	ledger := newMemLedger()
	a := seedAuction(ledger, now.Add(time.Hour))
	events := &recSink{}
	settler := NewSettler(ledger, events, nil)

	buyer := model.Principal{ID: "buyer-1", Role: model.RoleBuyer}
	assert.ErrorIs(t, settler.Cancel(context.Background(), a.ID, buyer), ErrForbidden)

	admin := model.Principal{ID: "root", Role: model.RoleAdmin}
	require.NoError(t, settler.Cancel(context.Background(), a.ID, admin))

	stored, err := ledger.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionCancelled, stored.Status)
	assert.Nil(t, stored.WinnerID)

	it, err := ledger.Item(context.Background(), a.ItemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemListed, it.Status)

	// Cancellation is silent and terminal: no broadcast, and neither
	// a second cancel nor a settle can touch the auction again.
	assert.Empty(t, events.endedEvents())
	assert.ErrorIs(t, settler.Cancel(context.Background(), a.ID, admin), ErrNotActive)

	out, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, out.AlreadySettled)
}

// failingLedger wraps a memLedger and fails Mutate for one auction,
// to prove the scanner isolates per-auction failures.
type failingLedger struct {
	*memLedger
	failID string
}

func (l *failingLedger) Mutate(ctx context.Context, id string, fn func(tx Tx) error) error {
	if id == l.failID {
		return errors.New("storage hiccup")
	}
	return l.memLedger.Mutate(ctx, id, fn)
}

func TestScannerSettlesDueAuctions(t *testing.T) {
	now := fixedNow()
	mem := newMemLedger()
	overdueA := seedAuction(mem, now.Add(-time.Minute))
	overdueB := overdueA
	overdueB.ID, overdueB.ItemID = "a2", "i2"
	mem.addAuction(overdueB)
	mem.addItem(model.Item{ID: "i2", SellerID: "seller-1", Status: model.ItemInAuction})
	live := overdueA
	live.ID, live.ItemID = "a3", "i3"
	live.EndTime = now.Add(time.Hour)
	mem.addAuction(live)

	ledger := &failingLedger{memLedger: mem, failID: overdueA.ID}
	events := &recSink{}
	settler := NewSettler(ledger, events, nil)
	scanner := NewScanner(ledger, settler, events, time.Second, time.Minute)
	scanner.now = func() time.Time { return now }

	scanner.pass(context.Background())

	// a2 settled despite a1 failing; a3 untouched.
	a2, err := mem.Auction(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, model.AuctionEnded, a2.Status)

	a1, err := mem.Auction(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AuctionActive, a1.Status)

	a3, err := mem.Auction(context.Background(), "a3")
	require.NoError(t, err)
	assert.Equal(t, model.AuctionActive, a3.Status)

	// The failed auction is retried on the next pass.
	ledger.failID = ""
	scanner.pass(context.Background())
	a1, err = mem.Auction(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AuctionEnded, a1.Status)
}

func TestScannerEndingSoonAdvisory(t *testing.T) {
	now := fixedNow()
	mem := newMemLedger()
	a := seedAuction(mem, now.Add(30*time.Second))
	events := &recSink{}

	settler := NewSettler(mem, events, nil)
	scanner := NewScanner(mem, settler, events, time.Second, time.Minute)
	scanner.now = func() time.Time { return now }

	scanner.pass(context.Background())
	scanner.pass(context.Background())

	// One advisory per deadline, not per pass.
	soon := events.soonEvents()
	require.Len(t, soon, 1)
	assert.Equal(t, a.ID, soon[0].AuctionID)
	assert.Equal(t, int64(30_000), soon[0].TimeRemaining)

	// A soft-close extension produces a new deadline and with it a
	// fresh advisory once the new deadline enters the window.
	svc := NewService(mem, nil, 2*time.Minute)
	svc.now = func() time.Time { return now }
	_, snap, err := svc.PlaceBid(context.Background(), a.ID, model.Principal{ID: "buyer-1", Name: "D"}, 510)
	require.NoError(t, err)
	require.Equal(t, now.Add(2*time.Minute), snap.EndTime)

	scanner.now = func() time.Time { return now.Add(70 * time.Second) }
	scanner.pass(context.Background())
	soon = events.soonEvents()
	require.Len(t, soon, 2)
	assert.Equal(t, int64(50_000), soon[1].TimeRemaining)
}

func TestLateBidDefersSettlement(t *testing.T) {
	// A bid 30 seconds before the deadline pushes it out two minutes,
	// so a scan at the old deadline must not settle the auction.
	now := fixedNow()
	mem := newMemLedger()
	a := seedAuction(mem, now.Add(30*time.Second))
	events := &recSink{}

	svc := NewService(mem, nil, 2*time.Minute)
	svc.now = func() time.Time { return now }
	_, _, err := svc.PlaceBid(context.Background(), a.ID, model.Principal{ID: "buyer-1", Name: "D"}, 510)
	require.NoError(t, err)

	settler := NewSettler(mem, events, nil)
	scanner := NewScanner(mem, settler, events, time.Second, time.Minute)

	scanner.now = func() time.Time { return now.Add(31 * time.Second) }
	scanner.pass(context.Background())
	stored, err := mem.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionActive, stored.Status)
	assert.Empty(t, events.endedEvents())

	// Past the extended deadline it settles normally.
	scanner.now = func() time.Time { return now.Add(2*time.Minute + time.Second) }
	scanner.pass(context.Background())
	stored, err = mem.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionEnded, stored.Status)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, "buyer-1", *stored.WinnerID)
}

func TestLeadingBidTieBreak(t *testing.T) {
	// Equal amounts cannot happen through PlaceBid (the floor moves),
	// but the ledger contract still defines the tie break: earliest
	// bid wins.
	now := fixedNow()
	mem := newMemLedger()
	a := seedAuction(mem, now.Add(time.Hour))
	mem.bids[a.ID] = []model.Bid{
		{ID: "b2", AuctionID: a.ID, BidderID: "late", BidderName: "Late", Amount: 600, CreatedAt: now.Add(time.Second)},
		{ID: "b1", AuctionID: a.ID, BidderID: "early", BidderName: "Early", Amount: 600, CreatedAt: now},
	}

	settler := NewSettler(mem, nil, nil)
	out, err := settler.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, out.WinnerID)
	assert.Equal(t, "early", *out.WinnerID)
}
