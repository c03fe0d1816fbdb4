// Package token defines the immutable credential value object carried per
// user after an OAuth exchange.
package token

import (
	"strings"
	"time"

	apperr "github.com/auric-labs/personagate/internal/errors"
)

// Token is an immutable credential with lifetime metadata. Expiry reported by
// the Token itself is advisory only; see IsExpired.
type Token struct {
	value     string
	expiresAt *time.Time
}

// New creates a token. expiresAt may be nil for tokens without a known
// lifetime.
func New(value string, expiresAt *time.Time) (Token, error) {
	if strings.TrimSpace(value) == "" {
		return Token{}, apperr.Validationf("token value is required")
	}
	if expiresAt != nil {
		t := expiresAt.UTC()
		expiresAt = &t
	}
	return Token{value: value, expiresAt: expiresAt}, nil
}

// NewWithLifetime creates a token expiring lifetime from now.
func NewWithLifetime(value string, lifetime time.Duration) (Token, error) {
	exp := time.Now().UTC().Add(lifetime)
	return New(value, &exp)
}

// Extend returns a new Token with the expiry pushed out by delta. The
// original token is unchanged. Extending a token without an expiry returns
// an equal token.
func (t Token) Extend(delta time.Duration) Token {
	if t.expiresAt == nil {
		return t
	}
	exp := t.expiresAt.Add(delta)
	return Token{value: t.value, expiresAt: &exp}
}

// Value returns the raw credential. Callers must not log it; use String for
// anything user- or log-facing.
func (t Token) Value() string { return t.value }

// ExpiresAt returns the advisory expiry timestamp, or nil.
func (t Token) ExpiresAt() *time.Time {
	if t.expiresAt == nil {
		return nil
	}
	exp := *t.expiresAt
	return &exp
}

// String masks all but the last few characters of the credential.
func (t Token) String() string {
	const visible = 4
	if len(t.value) <= visible {
		return strings.Repeat("*", len(t.value))
	}
	return strings.Repeat("*", len(t.value)-visible) + t.value[len(t.value)-visible:]
}

// IsExpired always reports false. Local expiry enforcement is deliberately
// disabled: the upstream provider is the sole source of truth for token
// validity, and a locally rejected token would desynchronize the two.
func (t Token) IsExpired() bool {
	return false
}

// TimeUntilExpiration always reports an effectively infinite remaining
// lifetime, for the same reason IsExpired always reports false.
func (t Token) TimeUntilExpiration() time.Duration {
	return time.Duration(1<<63 - 1)
}

// ShouldRefresh always reports false; refresh decisions are delegated to the
// upstream provider.
func (t Token) ShouldRefresh() bool {
	return false
}
