package types

import "time"

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen at registration.
	// It never changes once the account exists.
	Username string `json:"username" db:"username"`

	// Role is the user's authorization tier. Registration always
	// assigns RoleUser; only operator provisioning grants RoleAdmin.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// The salt is embedded in the digest. This field is never exposed.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
