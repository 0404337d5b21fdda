// Package sso verifies federated Firebase identities and provisions
// local accounts for them.
package sso

import (
	"context"
	"errors"
)

// ErrInvalidIDToken means the Firebase ID token failed verification
var ErrInvalidIDToken = errors.New("invalid firebase id token")

// Assertion is a verified federated identity
type Assertion struct {
	UID            string
	Email          string
	EmailVerified  bool
	Name           string
	Picture        string
	SignInProvider string
}

// Verifier validates a raw Firebase ID token
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Assertion, error)
}
