package models

import "time"

// User is a registered account. Username and Email are unique across the
// system. PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID            int64     `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	PreferredName string    `json:"preferredName" db:"preferred_name"`
	IsAdmin       bool      `json:"isAdmin" db:"is_admin"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Role returns the role claim embedded in issued tokens.
func (u User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}
