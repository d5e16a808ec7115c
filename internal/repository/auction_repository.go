package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/campusbid/auction-service/internal/auction"
	"github.com/campusbid/auction-service/internal/model"
)

// AuctionRepo provides row access to the `auctions` table.  All
// timestamps are stored and compared in UTC.
type AuctionRepo struct {
	db *sql.DB
}

// NewAuctionRepo returns an AuctionRepo bound to the given database.
func NewAuctionRepo(db *sql.DB) *AuctionRepo { return &AuctionRepo{db: db} }

const auctionCols = `id, item_id, seller_id, starting_price, reserve_price, current_price,
       min_increment, start_time, end_time, original_end_time, status, winner_id, total_bids, created_at`

// scanAuction reads one auctions row from any row scanner.
func scanAuction(row interface{ Scan(...any) error }) (*model.Auction, error) {
	var (
		a       model.Auction
		reserve sql.NullFloat64
		winner  sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.ItemID, &a.SellerID, &a.StartingPrice, &reserve, &a.CurrentPrice,
		&a.MinIncrement, &a.StartTime, &a.EndTime, &a.OriginalEndTime, &a.Status,
		&winner, &a.TotalBids, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reserve.Valid {
		v := reserve.Float64
		a.ReservePrice = &v
	}
	if winner.Valid {
		w := winner.String
		a.WinnerID = &w
	}
	return &a, nil
}

// GetByID loads one auction without locking it.
func (r *AuctionRepo) GetByID(ctx context.Context, id string) (*model.Auction, error) {
	a, err := scanAuction(r.db.QueryRowContext(ctx,
		`SELECT `+auctionCols+` FROM auctions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auction.ErrNotFound
	}
	return a, err
}

// GetForUpdateTx loads one auction while taking its row lock.  The
// lock is held until the transaction commits or rolls back; this is
// the exclusive-access primitive every state-changing operation runs
// under.  Contention failures come back as auction.ErrConflict.
func (r *AuctionRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Auction, error) {
	a, err := scanAuction(tx.QueryRowContext(ctx,
		`SELECT `+auctionCols+` FROM auctions WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auction.ErrNotFound
	}
	if err != nil {
		return nil, translateLockErr(err)
	}
	return a, nil
}

// UpdateTx writes back every mutable auction field.  Immutable fields
// (ids, prices at creation, original_end_time) are never touched.
func (r *AuctionRepo) UpdateTx(ctx context.Context, tx *sql.Tx, a *model.Auction) error {
	var winner any
	if a.WinnerID != nil {
		winner = *a.WinnerID
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE auctions
            SET current_price = ?, total_bids = ?, end_time = ?, status = ?, winner_id = ?
          WHERE id = ?`,
		a.CurrentPrice, a.TotalBids, a.EndTime.UTC(), a.Status, winner, a.ID)
	return translateLockErr(err)
}

// InsertTx inserts a freshly created auction.
func (r *AuctionRepo) InsertTx(ctx context.Context, tx *sql.Tx, a *model.Auction) error {
	var reserve any
	if a.ReservePrice != nil {
		reserve = *a.ReservePrice
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO auctions
           (id, item_id, seller_id, starting_price, reserve_price, current_price,
            min_increment, start_time, end_time, original_end_time, status, total_bids, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		a.ID, a.ItemID, a.SellerID, a.StartingPrice, reserve, a.CurrentPrice,
		a.MinIncrement, a.StartTime.UTC(), a.EndTime.UTC(), a.OriginalEndTime.UTC(),
		a.Status, a.CreatedAt.UTC())
	return err
}

// DueIDs lists active auctions whose deadline has passed.  Only ids
// are returned; the settler re-reads each row under its lock.
func (r *AuctionRepo) DueIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM auctions WHERE status = ? AND end_time <= ?`,
		model.AuctionActive, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EndingWithin lists active auctions whose deadline falls inside
// (now, now+window].  Used for the ending-soon advisory only.
func (r *AuctionRepo) EndingWithin(ctx context.Context, now time.Time, window time.Duration) ([]model.Auction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auctionCols+` FROM auctions
          WHERE status = ? AND end_time > ? AND end_time <= ?`,
		model.AuctionActive, now.UTC(), now.UTC().Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Summary is one auction row joined with its item title and the
// seller and winner display names, as shown on browse pages.
type Summary struct {
	model.Auction
	Title      string  `json:"title"`
	SellerName string  `json:"seller_name"`
	WinnerName *string `json:"winner_name,omitempty"`
}

// ListFilter narrows and orders a browse query.  Statuses is a
// whitelist; empty means active only.  Sort accepts ending_soon,
// newest, most_bids, price_low and price_high.
type ListFilter struct {
	Statuses []string
	Sort     string
	Limit    int
	Offset   int
}

const summaryQuery = `SELECT a.id, a.item_id, a.seller_id, a.starting_price, a.reserve_price, a.current_price,
       a.min_increment, a.start_time, a.end_time, a.original_end_time, a.status, a.winner_id, a.total_bids, a.created_at,
       i.title, u.name, w.name
  FROM auctions a
  JOIN items i ON i.id = a.item_id
  JOIN users u ON u.id = a.seller_id
  LEFT JOIN users w ON w.id = a.winner_id`

func scanSummary(rows *sql.Rows) (*Summary, error) {
	var (
		s       Summary
		reserve sql.NullFloat64
		winner  sql.NullString
		wname   sql.NullString
	)
	err := rows.Scan(
		&s.ID, &s.ItemID, &s.SellerID, &s.StartingPrice, &reserve, &s.CurrentPrice,
		&s.MinIncrement, &s.StartTime, &s.EndTime, &s.OriginalEndTime, &s.Status,
		&winner, &s.TotalBids, &s.CreatedAt,
		&s.Title, &s.SellerName, &wname,
	)
	if err != nil {
		return nil, err
	}
	if reserve.Valid {
		v := reserve.Float64
		s.ReservePrice = &v
	}
	if winner.Valid {
		w := winner.String
		s.WinnerID = &w
	}
	if wname.Valid {
		n := wname.String
		s.WinnerName = &n
	}
	return &s, nil
}

// List returns a page of auction summaries plus the total match count.
func (r *AuctionRepo) List(ctx context.Context, f ListFilter) ([]Summary, int, error) {
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []string{model.AuctionActive}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+2)
	for _, st := range statuses {
		args = append(args, st)
	}

	var order string
	switch f.Sort {
	case "newest":
		order = "a.created_at DESC"
	case "most_bids":
		order = "a.total_bids DESC"
	case "price_low":
		order = "a.current_price ASC"
	case "price_high":
		order = "a.current_price DESC"
	default: // ending_soon
		order = "a.end_time ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 12
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := summaryQuery + ` WHERE a.status IN (` + placeholders + `) ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Summary, 0, limit)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countQ := `SELECT COUNT(*) FROM auctions a WHERE a.status IN (` + placeholders + `)`
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// BySeller returns every auction a seller has published, newest first.
func (r *AuctionRepo) BySeller(ctx context.Context, sellerID string) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx,
		summaryQuery+` WHERE a.seller_id = ? ORDER BY a.created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Summary, 0)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SellerContact is the contact block shown only to the winner of an
// ended auction.
type SellerContact struct {
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Hostel string `json:"hostel,omitempty"`
	Room   string `json:"room,omitempty"`
}

// Detail is the full auction record served by the read path: the
// auction joined with item, seller and winner info plus the ordered
// bid history.  Contact stays nil unless the handler decides the
// caller may see it.
type Detail struct {
	Summary
	Description string         `json:"description"`
	Bids        []model.Bid    `json:"bids"`
	Contact     *SellerContact `json:"seller_contact,omitempty"`

	contact SellerContact
}

// RevealContact attaches the seller contact block to the payload.
func (d *Detail) RevealContact() { d.Contact = &d.contact }

// GetDetail loads the full auction record including bid history
// (ordered by amount descending, earliest first on equal amounts).
func (r *AuctionRepo) GetDetail(ctx context.Context, bids *BidRepo, id string) (*Detail, error) {
	const q = `SELECT a.id, a.item_id, a.seller_id, a.starting_price, a.reserve_price, a.current_price,
       a.min_increment, a.start_time, a.end_time, a.original_end_time, a.status, a.winner_id, a.total_bids, a.created_at,
       i.title, u.name, w.name,
       i.description, COALESCE(u.phone,''), u.email, COALESCE(u.hostel,''), COALESCE(u.room,'')
  FROM auctions a
  JOIN items i ON i.id = a.item_id
  JOIN users u ON u.id = a.seller_id
  LEFT JOIN users w ON w.id = a.winner_id
 WHERE a.id = ?`

	var (
		d       Detail
		reserve sql.NullFloat64
		winner  sql.NullString
		wname   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.ItemID, &d.SellerID, &d.StartingPrice, &reserve, &d.CurrentPrice,
		&d.MinIncrement, &d.StartTime, &d.EndTime, &d.OriginalEndTime, &d.Status,
		&winner, &d.TotalBids, &d.CreatedAt,
		&d.Title, &d.SellerName, &wname,
		&d.Description, &d.contact.Phone, &d.contact.Email, &d.contact.Hostel, &d.contact.Room,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auction.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if reserve.Valid {
		v := reserve.Float64
		d.ReservePrice = &v
	}
	if winner.Valid {
		w := winner.String
		d.WinnerID = &w
	}
	if wname.Valid {
		n := wname.String
		d.WinnerName = &n
	}

	d.Bids, err = bids.ListByAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
