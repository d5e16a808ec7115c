package repository

import "context"

// Stats is the marketplace-wide dashboard snapshot.
type Stats struct {
	TotalUsers     int     `json:"total_users"`
	TotalItems     int     `json:"total_items"`
	TotalAuctions  int     `json:"total_auctions"`
	ActiveAuctions int     `json:"active_auctions"`
	TotalBids      int     `json:"total_bids"`
	TotalBidValue  float64 `json:"total_bid_value"`
}

// Stats aggregates counts across the whole marketplace in one round
// trip per table.
func (l *Ledger) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users`).Scan(&s.TotalUsers); err != nil {
		return nil, err
	}
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items`).Scan(&s.TotalItems); err != nil {
		return nil, err
	}
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(status = 'active'), 0) FROM auctions`).
		Scan(&s.TotalAuctions, &s.ActiveAuctions); err != nil {
		return nil, err
	}
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM bids`).
		Scan(&s.TotalBids, &s.TotalBidValue); err != nil {
		return nil, err
	}
	return &s, nil
}
