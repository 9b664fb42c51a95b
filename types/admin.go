package types

import "time"

// AdminStatus enumerates the lifecycle states of an admin account.
type AdminStatus string

const (
	// StatusActive marks an account that may log in once verified.
	StatusActive AdminStatus = "active"

	// StatusSuspended marks an account that is temporarily blocked from logging in.
	StatusSuspended AdminStatus = "suspended"

	// StatusInactive marks an account that has been deactivated.
	StatusInactive AdminStatus = "inactive"
)

// Valid reports whether the status is one of the known values.
func (s AdminStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

// Admin represents a privileged account in the system.
// It contains identity, authorization, verification, and audit metadata.
type Admin struct {
	// ID is the unique identifier of the admin.
	ID int `json:"id" db:"id"`

	// Name is the admin's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the admin's email address. Unique across all admins.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the admin's password.
	// This field is never exposed in API responses and is only loaded
	// by credential queries.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the admin's authorization level (e.g., "admin", "superadmin").
	Role string `json:"role" db:"role"`

	// Permissions lists the fine-grained permissions granted to the admin.
	Permissions []string `json:"permissions" db:"permissions"`

	// Status is the account lifecycle state: active, suspended, or inactive.
	Status AdminStatus `json:"status" db:"status"`

	// IsVerified reports whether the admin has confirmed their email address.
	IsVerified bool `json:"isVerified" db:"is_verified"`

	// VerificationTokenHash is the SHA-256 digest of the outstanding email
	// verification token, if any. The cleartext token is never persisted.
	VerificationTokenHash *string `json:"-" db:"verification_token"`

	// VerificationExpiry is the instant after which the verification token
	// is no longer accepted.
	VerificationExpiry *time.Time `json:"-" db:"verification_token_expiry"`

	// ResetTokenHash is the SHA-256 digest of the outstanding password reset
	// token, if any.
	ResetTokenHash *string `json:"-" db:"password_reset_token"`

	// ResetExpiry is the instant after which the reset token is no longer accepted.
	ResetExpiry *time.Time `json:"-" db:"password_reset_expiry"`

	// AvatarKey is the object-storage key of the admin's avatar, if uploaded.
	AvatarKey string `json:"-" db:"avatar_key"`

	// LastLoginAt is the timestamp of the most recent successful login.
	LastLoginAt *time.Time `json:"lastLogin,omitempty" db:"last_login_at"`

	// Notes holds free-form notes attached to the account.
	Notes string `json:"notes" db:"notes"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
