package token

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Option configures the Manager.
type Option func(*options)

type options struct {
	httpClient     *http.Client
	log            *slog.Logger
	now            func() time.Time
	endpoint       *oauth2.Endpoint
	requiredScopes []string
}

// WithHTTPClient sets a custom HTTP client for token refresh requests.
// Useful for testing with httptest servers or injecting custom transports.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets the logger for refresh and scope diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithRequiredScopes overrides the scopes a grant must carry.
// Default: the Gmail send scope.
func WithRequiredScopes(scopes ...string) Option {
	return func(o *options) {
		o.requiredScopes = scopes
	}
}

// WithEndpoint overrides the provider's OAuth endpoint.
// Default: Google. Tests point this at an httptest server.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(o *options) {
		o.endpoint = &ep
	}
}

// WithClock overrides the time source for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
