package token

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
)

// Config holds Google OAuth client configuration.
type Config struct {
	ClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID,required"`
	ClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET,required"`

	// RefreshSkew is the safety buffer before expiry at which a token is
	// refreshed, so it cannot expire mid-flight during the send call.
	RefreshSkew time.Duration `env:"TOKEN_REFRESH_SKEW" envDefault:"5m"`
}

// Manager returns currently-valid access tokens for users.
//
// Refresh failures are not retried: a grant the provider rejects cannot
// self-heal, so the failure is surfaced for the user to re-consent.
type Manager struct {
	store          Store
	oauth          *oauth2.Config
	log            *slog.Logger
	httpClient     *http.Client
	now            func() time.Time
	requiredScopes []string
	skew           time.Duration
	sf             singleflight.Group
}

// NewManager creates a token manager backed by the given store.
func NewManager(store Store, cfg Config, opts ...Option) *Manager {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	skew := cfg.RefreshSkew
	if skew <= 0 {
		skew = 5 * time.Minute
	}

	scopes := o.requiredScopes
	if len(scopes) == 0 {
		scopes = []string{ScopeGmailSend}
	}

	log := o.log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	now := o.now
	if now == nil {
		now = time.Now
	}

	endpoint := googleOAuth.Endpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}

	return &Manager{
		store: store,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		log:            log,
		httpClient:     o.httpClient,
		now:            now,
		requiredScopes: scopes,
		skew:           skew,
	}
}

// AccessToken returns a currently-valid access token for the user.
//
// A token expiring more than the configured skew in the future is returned
// as stored, with no network calls. Otherwise the refresh endpoint is
// called, serialized per-user so concurrent sends do not race on
// refresh-token rotation.
func (m *Manager) AccessToken(ctx context.Context, userID string) (string, error) {
	grant, err := m.loadGrant(ctx, userID)
	if err != nil {
		return "", err
	}

	if m.fresh(grant) {
		return grant.AccessToken, nil
	}

	v, err, _ := m.sf.Do(userID, func() (any, error) {
		// Re-load after acquiring the flight: another caller may have
		// refreshed while we waited.
		grant, err := m.loadGrant(ctx, userID)
		if err != nil {
			return "", err
		}
		if m.fresh(grant) {
			return grant.AccessToken, nil
		}
		return m.refresh(ctx, grant)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// loadGrant fetches the grant and asserts it is usable: refresh token
// present and mail-send scope granted.
func (m *Manager) loadGrant(ctx context.Context, userID string) (*Grant, error) {
	grant, err := m.store.Grant(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return nil, mailerr.AuthRequired("mailbox is not connected", err)
		}
		return nil, mailerr.Transport("failed to load mailbox authorization", err)
	}

	if grant.RefreshToken == "" {
		m.log.ErrorContext(ctx, "grant stored without refresh token",
			slog.String("user_id", userID))
		return nil, mailerr.AuthRequired("mailbox authorization is incomplete", ErrRefreshTokenMissing)
	}

	for _, scope := range m.requiredScopes {
		if !grant.HasScope(scope) {
			// Surfaced identically to "not authorized", but logged apart so
			// operators can tell a consent-screen problem from a missing grant.
			m.log.WarnContext(ctx, "grant missing required scope",
				slog.String("user_id", userID),
				slog.String("scope", scope))
			return nil, mailerr.AuthRequired("mail-send permission was not granted", ErrScopeMissing)
		}
	}

	return grant, nil
}

func (m *Manager) fresh(grant *Grant) bool {
	return m.now().Before(grant.ExpiresAt.Add(-m.skew))
}

func (m *Manager) refresh(ctx context.Context, grant *Grant) (string, error) {
	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}

	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: grant.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", mailerr.AuthExpired("mailbox authorization expired, reconnect required",
			errors.Join(ErrRefreshFailed, err))
	}

	// Persist the rotated refresh token even when the provider was not
	// required to rotate it; some providers rotate opportunistically.
	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = grant.RefreshToken
	}

	if err := m.store.SaveTokens(ctx, grant.UserID, tok.AccessToken, refreshToken, tok.Expiry); err != nil {
		return "", mailerr.Transport("failed to persist refreshed tokens", err)
	}

	m.log.InfoContext(ctx, "access token refreshed",
		slog.String("user_id", grant.UserID),
		slog.Time("expires_at", tok.Expiry))

	return tok.AccessToken, nil
}
