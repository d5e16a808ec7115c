package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/campusbid/auction-service/internal/auction"
	"github.com/campusbid/auction-service/internal/model"
)

// ItemRepo provides access to the `items` table.  Items belong to the
// listing collaborator; the auction core only consumes references and
// mirrors settlement outcomes onto the status column.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns an ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

// Create inserts a new item in `listed` state.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, seller_id, title, description, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.SellerID, it.Title, it.Description, it.Status, it.CreatedAt.UTC())
	return err
}

// GetByID loads one item.
func (r *ItemRepo) GetByID(ctx context.Context, id string) (*model.Item, error) {
	var it model.Item
	err := r.db.QueryRowContext(ctx,
		`SELECT id, seller_id, title, description, status, created_at FROM items WHERE id = ?`, id).
		Scan(&it.ID, &it.SellerID, &it.Title, &it.Description, &it.Status, &it.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auction.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// GetForUpdateTx loads an item while taking its row lock, so the
// not-already-in-auction check and the status flip are atomic.
func (r *ItemRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Item, error) {
	var it model.Item
	err := tx.QueryRowContext(ctx,
		`SELECT id, seller_id, title, description, status, created_at FROM items WHERE id = ? FOR UPDATE`, id).
		Scan(&it.ID, &it.SellerID, &it.Title, &it.Description, &it.Status, &it.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auction.ErrItemNotFound
	}
	if err != nil {
		return nil, translateLockErr(err)
	}
	return &it, nil
}

// SetStatusTx updates an item's status within the caller's transaction.
func (r *ItemRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE items SET status = ? WHERE id = ?`, status, id)
	return translateLockErr(err)
}

// ListBySeller returns a seller's items, newest first.
func (r *ItemRepo) ListBySeller(ctx context.Context, sellerID string) ([]model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seller_id, title, description, status, created_at
           FROM items WHERE seller_id = ? ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Item, 0)
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.SellerID, &it.Title, &it.Description, &it.Status, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
