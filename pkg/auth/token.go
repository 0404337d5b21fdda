package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenIssuer is embedded in every session token
	TokenIssuer = "app-cuatri"
	// TokenAudience identifies the consumer of session tokens
	TokenAudience = "app-cuatri-users"
	// VerificationTokenBytes is the random length of email verification
	// tokens (32 bytes = 64 hex chars)
	VerificationTokenBytes = 32
)

// Token verification errors
var (
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenMalformed      = errors.New("token malformed")
	ErrIssuerMismatch      = errors.New("token issuer mismatch")
	ErrAudienceMismatch    = errors.New("token audience mismatch")
	ErrMissingAuthHeader   = errors.New("authorization header required")
	ErrMalformedAuthHeader = errors.New("invalid authorization header format, use: Bearer <token>")
)

// SessionClaims are the JWT claims carried by a session token
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"id"`
	Email  string `json:"email"`
}

// TokenService issues and verifies signed session tokens and generates
// opaque verification tokens
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenService creates a token service with the signing secret and
// session lifetime established at startup
func NewTokenService(secret []byte, lifetime time.Duration) *TokenService {
	return &TokenService{secret: secret, lifetime: lifetime}
}

// IssueToken creates a signed HS256 session token for the given subject
func (s *TokenService) IssueToken(userID int64, email string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates signature, expiry, issuer and audience, and
// returns the embedded claims
func (s *TokenService) VerifyToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrIssuerMismatch
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, ErrAudienceMismatch
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// GenerateVerificationToken returns a cryptographically random opaque
// token used for email verification
func (s *TokenService) GenerateVerificationToken() (string, error) {
	buf := make([]byte, VerificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ExtractBearerToken parses an Authorization header value in the form
// "Bearer <token>"
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMalformedAuthHeader
	}
	return parts[1], nil
}
