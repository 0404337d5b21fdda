package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("test-secret-key")

func TestTokenService_IssueAndVerify(t *testing.T) {
	ts := NewTokenService(testSecret, 7*24*time.Hour)

	token, err := ts.IssueToken(42, "ana@example.com")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := ts.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "ana@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "ana@example.com")
	}
	if claims.Issuer != TokenIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, TokenIssuer)
	}
}

func TestTokenService_VerifyExpired(t *testing.T) {
	ts := NewTokenService(testSecret, -time.Minute)

	token, err := ts.IssueToken(1, "a@x.com")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	_, err = ts.VerifyToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenService_VerifyTampered(t *testing.T) {
	ts := NewTokenService(testSecret, time.Hour)

	token, err := ts.IssueToken(1, "a@x.com")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	// Flip a byte in the payload segment
	tampered := []byte(token)
	mid := len(tampered) / 2
	if tampered[mid] == 'a' {
		tampered[mid] = 'b'
	} else {
		tampered[mid] = 'a'
	}

	_, err = ts.VerifyToken(string(tampered))
	if !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("VerifyToken() error = %v, want ErrTokenMalformed", err)
	}
}

func TestTokenService_VerifyWrongSecret(t *testing.T) {
	issuer := NewTokenService(testSecret, time.Hour)
	verifier := NewTokenService([]byte("another-secret"), time.Hour)

	token, err := issuer.IssueToken(1, "a@x.com")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	if _, err := verifier.VerifyToken(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("VerifyToken() error = %v, want ErrTokenMalformed", err)
	}
}

func TestTokenService_GenerateVerificationToken(t *testing.T) {
	ts := NewTokenService(testSecret, time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := ts.GenerateVerificationToken()
		if err != nil {
			t.Fatalf("GenerateVerificationToken() error = %v", err)
		}
		if len(token) != 64 {
			t.Fatalf("token length = %d, want 64", len(token))
		}
		if strings.ToLower(token) != token {
			t.Errorf("token should be lowercase hex: %q", token)
		}
		if seen[token] {
			t.Errorf("duplicate verification token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"missing header", "", "", ErrMissingAuthHeader},
		{"wrong scheme", "Basic abc", "", ErrMalformedAuthHeader},
		{"no token", "Bearer ", "", ErrMalformedAuthHeader},
		{"scheme only", "Bearer", "", ErrMalformedAuthHeader},
		{"lowercase scheme", "bearer abc", "", ErrMalformedAuthHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ExtractBearerToken() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractBearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
