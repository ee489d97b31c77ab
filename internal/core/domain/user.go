package domain

import "time"

// Role defines account permission level
type Role string

const (
	RoleAdmin  Role = "admin"  // Manage accounts and the issuer registry
	RoleIssuer Role = "issuer" // Publish documents
	RoleHolder Role = "holder" // Discover and claim own documents
)

// User represents an account bound to a ledger address.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never serialize
	Name         string     `json:"name"`
	Address      string     `json:"address"` // ledger address this account controls
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// UserSummary provides a safe view of user data (no password hash)
type UserSummary struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Role        Role       `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ToSummary converts a User to UserSummary
func (u *User) ToSummary() *UserSummary {
	return &UserSummary{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Address:     u.Address,
		Role:        u.Role,
		Active:      u.Active,
		LastLoginAt: u.LastLoginAt,
	}
}

// IsAdmin checks if the user has admin privileges
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanIssue checks if the user can publish documents
func (u *User) CanIssue() bool {
	return u.Active && (u.Role == RoleIssuer || u.Role == RoleAdmin)
}
