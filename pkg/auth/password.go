package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the bcrypt work factor (10 balances security and latency)
const BcryptCost = 10

// PasswordHasher hashes and verifies user passwords with bcrypt
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the default work factor
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: BcryptCost}
}

// NewPasswordHasherWithCost creates a hasher with an explicit work factor.
// Used by tests to keep the suite fast.
func NewPasswordHasherWithCost(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

// HashPassword returns the bcrypt hash of a plaintext password.
// bcrypt salts internally, so hashing the same input twice yields
// different outputs.
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// ComparePassword checks a plaintext password against a stored hash.
// A wrong password returns (false, nil); an error is returned only when
// the stored hash itself is malformed.
func (h *PasswordHasher) ComparePassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare password: %w", err)
}

// ValidatePasswordStrength enforces the minimum password policy:
// at least 6 characters with at least one letter and one digit.
func ValidatePasswordStrength(password string) bool {
	if len(password) < 6 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
