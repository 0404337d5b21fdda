package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// firebaseIssuerPrefix is the issuer base for Firebase ID tokens; the
// project ID completes it and also serves as the expected audience.
const firebaseIssuerPrefix = "https://securetoken.google.com/"

// FirebaseVerifier validates Firebase ID tokens using the project's
// public JWKS through OIDC discovery.
type FirebaseVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewFirebaseVerifier discovers the Firebase token signer for a project
func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firebase project ID is required")
	}

	provider, err := oidc.NewProvider(ctx, firebaseIssuerPrefix+projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to discover firebase token issuer: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: projectID,
	})

	return &FirebaseVerifier{verifier: verifier}, nil
}

// firebaseClaims mirrors the claim layout of a Firebase ID token
type firebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Firebase      struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`
}

// Verify checks signature, issuer, audience and expiry, then extracts
// the identity claims.
func (v *FirebaseVerifier) Verify(ctx context.Context, rawIDToken string) (*Assertion, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	var claims firebaseClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrInvalidIDToken, err)
	}

	return assertionFromClaims(idToken.Subject, claims), nil
}

func assertionFromClaims(subject string, claims firebaseClaims) *Assertion {
	provider := claims.Firebase.SignInProvider
	if provider == "" {
		provider = "firebase"
	}

	return &Assertion{
		UID:            subject,
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified,
		Name:           claims.Name,
		Picture:        claims.Picture,
		SignInProvider: provider,
	}
}
