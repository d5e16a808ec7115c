package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campusbid/auction-service/internal/model"
)

// BidRepo provides access to the append-only `bids` table.  Bid rows
// are never updated or deleted.
type BidRepo struct {
	db *sql.DB
}

// NewBidRepo returns a BidRepo bound to the given database.
func NewBidRepo(db *sql.DB) *BidRepo { return &BidRepo{db: db} }

// InsertTx appends one bid within the caller's transaction.
func (r *BidRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Bid) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bids (id, auction_id, bidder_id, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.AuctionID, b.BidderID, b.Amount, b.CreatedAt.UTC())
	return translateLockErr(err)
}

// LeadingTx returns the highest bid for an auction, ties broken by
// earliest created_at, or nil when no bids exist.  Equal amounts are
// not expected in practice because the accepted price strictly
// increases, so the tie-break is defensive only.
func (r *BidRepo) LeadingTx(ctx context.Context, tx *sql.Tx, auctionID string) (*model.Bid, error) {
	var b model.Bid
	err := tx.QueryRowContext(ctx,
		`SELECT b.id, b.auction_id, b.bidder_id, u.name, b.amount, b.created_at
           FROM bids b
           JOIN users u ON u.id = b.bidder_id
          WHERE b.auction_id = ?
          ORDER BY b.amount DESC, b.created_at ASC
          LIMIT 1`, auctionID).
		Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderName, &b.Amount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByAuction returns an auction's full bid history, highest amount
// first, earliest first on equal amounts.
func (r *BidRepo) ListByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.auction_id, b.bidder_id, u.name, b.amount, b.created_at
           FROM bids b
           JOIN users u ON u.id = b.bidder_id
          WHERE b.auction_id = ?
          ORDER BY b.amount DESC, b.created_at ASC`, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bids := make([]model.Bid, 0)
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderName, &b.Amount, &b.CreatedAt); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// BidderHistory is one of the caller's bids joined with the state of
// its auction, for the "my bids" view.
type BidderHistory struct {
	model.Bid
	Title         string    `json:"title"`
	AuctionStatus string    `json:"auction_status"`
	CurrentPrice  float64   `json:"current_price"`
	EndTime       time.Time `json:"end_time"`
	WinnerID      *string   `json:"winner_id,omitempty"`
}

// ListByBidder returns every bid a user has placed, newest first.
func (r *BidRepo) ListByBidder(ctx context.Context, bidderID string) ([]BidderHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.auction_id, b.bidder_id, b.amount, b.created_at,
                i.title, a.status, a.current_price, a.end_time, a.winner_id
           FROM bids b
           JOIN auctions a ON a.id = b.auction_id
           JOIN items i ON i.id = a.item_id
          WHERE b.bidder_id = ?
          ORDER BY b.created_at DESC`, bidderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BidderHistory, 0)
	for rows.Next() {
		var (
			h      BidderHistory
			winner sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.AuctionID, &h.BidderID, &h.Amount, &h.CreatedAt,
			&h.Title, &h.AuctionStatus, &h.CurrentPrice, &h.EndTime, &winner); err != nil {
			return nil, err
		}
		if winner.Valid {
			w := winner.String
			h.WinnerID = &w
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
