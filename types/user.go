package types

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an account in the system.
// It contains identity, contact details, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Phone is the user's phone number in E.164 form. Unique across users.
	Phone string `json:"phone" db:"phone"`

	// Email is the user's lower-cased email address. Unique across users.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level ("admin" or "user").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is the projection returned when listing users.
type UserSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Summary returns the list projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name}
}
