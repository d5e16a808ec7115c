package model

import "time"

// Roles carried in the JWT `role` claim.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User mirrors the `users` table.  Phone, Hostel and Room form the
// seller contact block that is revealed only to the winner of an
// ended auction.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Hostel       string    `json:"hostel,omitempty"`
	Room         string    `json:"room,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated identity attached to every mutating
// request.  It is extracted once from the JWT by middleware and
// threaded explicitly into the core operations; the domain packages
// never reach back into request context for it.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Admin reports whether the principal carries the admin role.
func (p Principal) Admin() bool { return p.Role == RoleAdmin }
