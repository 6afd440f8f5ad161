package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	// ErrEmailNotVerified is returned when Google reports the account
	// email as unverified. Unverified mailboxes are never connected.
	ErrEmailNotVerified = errors.New("token: email not verified")

	// ErrExchangeFailed indicates the authorization code could not be
	// traded for tokens.
	ErrExchangeFailed = errors.New("token: code exchange failed")

	// ErrUserInfoFailed indicates the userinfo call after exchange failed.
	ErrUserInfoFailed = errors.New("token: userinfo fetch failed")
)

// UserInfo is the Google account behind a freshly connected grant.
type UserInfo struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// Connector runs the consent flow that creates grants: it builds the
// authorization URL and trades the returned code for a Grant the Manager
// can keep alive afterwards.
type Connector struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

// NewConnector creates a connector for the Google consent flow.
// Scopes always include the mail-send scope plus the userinfo scopes
// needed to resolve the mailbox address.
func NewConnector(cfg Config, redirectURL string, opts ...Option) *Connector {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	endpoint := googleOAuth.Endpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}

	return &Connector{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
			Scopes: []string{
				ScopeGmailSend,
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
		httpClient: o.httpClient,
	}
}

// AuthCodeURL builds the consent URL. Offline access and forced consent
// are requested so Google issues a refresh token even on reconnects.
func (c *Connector) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a usable Grant.
//
// The grant is validated before it is returned: a missing refresh token
// or a consent screen where the user unchecked the mail-send scope fails
// here, at connect time, rather than at first send.
func (c *Connector) Exchange(ctx context.Context, userID, code string) (*Grant, *UserInfo, error) {
	ctx = c.contextWithHTTPClient(ctx)

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, errors.Join(ErrExchangeFailed, err)
	}

	if tok.RefreshToken == "" {
		return nil, nil, ErrRefreshTokenMissing
	}

	grant := &Grant{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
		Scopes:       grantedScopes(tok),
	}
	if !grant.HasScope(ScopeGmailSend) {
		return nil, nil, ErrScopeMissing
	}

	info, err := c.fetchUserInfo(ctx, tok)
	if err != nil {
		return nil, nil, err
	}

	return grant, info, nil
}

// grantedScopes reads the space-delimited scope list Google returns
// alongside the token. Falling back to the requested scopes would hide
// partial consent, so an absent field yields an empty list.
func grantedScopes(tok *oauth2.Token) []string {
	raw, _ := tok.Extra("scope").(string)
	return strings.Fields(raw)
}

func (c *Connector) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (*UserInfo, error) {
	client := c.oauth.Client(ctx, tok)

	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, errors.Join(ErrUserInfoFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Join(ErrUserInfoFailed,
			fmt.Errorf("userinfo request failed: status=%d body=%s", resp.StatusCode, body))
	}

	var u struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, errors.Join(ErrUserInfoFailed, err)
	}

	if !u.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}

	return &UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, Picture: u.Picture}, nil
}

func (c *Connector) contextWithHTTPClient(ctx context.Context) context.Context {
	if c.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	return ctx
}
