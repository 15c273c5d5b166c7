// Package auth logs in to the ledger service and keeps the bearer token
// between runs, encrypted at rest.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Record is a stored login.
type Record struct {
	Token     string     `json:"token"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewRecord builds a record for token. Expiry is read from the token when it
// is a JWT carrying an exp claim; opaque tokens never expire locally.
func NewRecord(token, email string, now time.Time) *Record {
	return &Record{
		Token:     token,
		Email:     email,
		CreatedAt: now.UTC(),
		ExpiresAt: tokenExpiry(token),
	}
}

// IsValid reports whether the token has not expired at now.
func (r *Record) IsValid(now time.Time) bool {
	if r == nil || r.Token == "" {
		return false
	}
	return r.ExpiresAt == nil || now.Before(*r.ExpiresAt)
}

// TTL returns the time left at now, or 0 for expired and non-expiring tokens.
func (r *Record) TTL(now time.Time) time.Duration {
	if r == nil || r.ExpiresAt == nil {
		return 0
	}
	remaining := r.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// tokenExpiry reads the exp claim without verifying the signature; only the
// ledger can verify its own tokens.
func tokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.UTC()
	return &t
}
