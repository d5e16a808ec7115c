package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusbid/auction-service/internal/model"
	"github.com/campusbid/auction-service/internal/utils"
)

// ErrEmailExists is returned when registering with an address that is
// already taken.
var ErrEmailExists = errors.New("email already exists")

// UserRepo provides access to the `users` table.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a user with a bcrypt-hashed password and returns the
// generated id.
func (r *UserRepo) Create(ctx context.Context, email, password, name, role string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, hash, name, role, time.Now().UTC())
	if err != nil {
		// 1062 = duplicate key on the unique email index.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

const userCols = `id, email, password_hash, name, role,
       COALESCE(phone,''), COALESCE(hostel,''), COALESCE(room,''), created_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.Phone, &u.Hostel, &u.Room, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail fetches a user by normalized email.  Returns
// sql.ErrNoRows when no such account exists.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email = ? LIMIT 1`, email))
}

// UpdateContact sets the contact block shown to auction winners.
func (r *UserRepo) UpdateContact(ctx context.Context, id, phone, hostel, room string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET phone = ?, hostel = ?, room = ? WHERE id = ?`,
		phone, hostel, room, id)
	return err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ? LIMIT 1`, id))
}

// List pages through accounts, optionally filtered by role, newest
// first.  Administrative use only.
func (r *UserRepo) List(ctx context.Context, role string, limit, offset int) ([]model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + userCols + ` FROM users`
	args := []any{}
	if role != "" {
		q += ` WHERE role = ?`
		args = append(args, role)
	}
	q += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]model.User, 0, limit)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
			&u.Phone, &u.Hostel, &u.Room, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateRole changes a user's role.  Returns sql.ErrNoRows when no
// such user exists.
func (r *UserRepo) UpdateRole(ctx context.Context, id, role string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
