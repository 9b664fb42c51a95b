package auth

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the floor enforced by every password-accepting endpoint.
const MinPasswordLength = 8

// HashPassword returns the bcrypt hash of a cleartext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword reports whether the cleartext password matches the stored hash.
func ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength checks a password against the account policy and
// returns the list of failed requirements. An empty slice means the password
// is acceptable.
func ValidatePasswordStrength(password string) []string {
	var reasons []string

	if len(password) < MinPasswordLength {
		reasons = append(reasons, "password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper {
		reasons = append(reasons, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "password must contain at least one digit")
	}
	if !hasSpecial {
		reasons = append(reasons, "password must contain at least one special character")
	}

	return reasons
}
