// Package token keeps per-user OAuth access tokens valid without user
// interaction. It loads the stored grant, verifies the mail-send scope,
// and refreshes proactively before expiry, persisting rotated refresh
// tokens back to the store.
package token

import (
	"context"
	"errors"
	"time"
)

// ScopeGmailSend is the Google OAuth scope required to send mail on the
// user's behalf.
const ScopeGmailSend = "https://www.googleapis.com/auth/gmail.send"

var (
	// ErrGrantNotFound is returned by Store implementations when no grant
	// exists for the user.
	ErrGrantNotFound = errors.New("token: grant not found")

	// ErrRefreshTokenMissing indicates a grant without a refresh token.
	// Grants are created with one, so this points at broken authorization
	// wiring rather than a runtime condition.
	ErrRefreshTokenMissing = errors.New("token: grant has no refresh token")

	// ErrScopeMissing indicates the grant lacks the mail-send scope.
	ErrScopeMissing = errors.New("token: grant missing required scope")

	// ErrRefreshFailed indicates the provider rejected the refresh attempt.
	ErrRefreshFailed = errors.New("token: refresh failed")
)

// Grant is the stored OAuth credential pair for one user.
type Grant struct {
	ExpiresAt    time.Time
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scopes       []string
}

// HasScope reports whether the grant was authorized for the given scope.
func (g *Grant) HasScope(scope string) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Store is the durable record of grants. Implementations must return
// ErrGrantNotFound when no grant exists for the user.
//
// Grants are mutated in place on refresh and never deleted here; deletion
// belongs to the auth/session layer.
type Store interface {
	Grant(ctx context.Context, userID string) (*Grant, error)
	SaveTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error
}
