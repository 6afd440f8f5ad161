// Package gmail is a thin wrapper over the Gmail API: raw message
// transmission plus the profile call used as a pre-flight check.
//
// The pre-flight exists because Gmail distinguishes "token parses but
// lacks permission" (403) from "token invalid" (401) only on real calls;
// catching that before rendering avoids wasted work on a doomed send.
package gmail

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
)

// Config holds Gmail transport configuration.
type Config struct {
	// Timeout bounds every provider call. A timeout is recorded as a
	// transport failure, never left pending.
	Timeout time.Duration `env:"GMAIL_TIMEOUT" envDefault:"30s"`
}

// Profile is the subset of the mailbox profile the pipeline uses.
type Profile struct {
	EmailAddress string
}

// SendResult carries the provider identifiers of an accepted message.
type SendResult struct {
	MessageID string
	ThreadID  string
}

// Client issues authenticated calls to the Gmail API.
// It is stateless: the access token is supplied per call by the token
// lifecycle manager.
type Client struct {
	timeout time.Duration
	opts    []option.ClientOption
}

// New creates a Gmail client. Extra options are passed to the underlying
// API client; tests use option.WithEndpoint and option.WithHTTPClient.
func New(cfg Config, opts ...option.ClientOption) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{timeout: timeout, opts: opts}
}

// Verify performs the pre-flight identity call with the given token.
func (c *Client) Verify(ctx context.Context, accessToken string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, mailerr.Transport("failed to initialize gmail client", err)
	}

	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, classify("gmail pre-flight check failed", err)
	}

	return &Profile{EmailAddress: profile.EmailAddress}, nil
}

// Send transmits a raw base64url-encoded message through the user's mailbox.
func (c *Client) Send(ctx context.Context, accessToken, raw string) (*SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, mailerr.Transport("failed to initialize gmail client", err)
	}

	msg, err := svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return nil, classify("gmail send failed", err)
	}

	return &SendResult{MessageID: msg.Id, ThreadID: msg.ThreadId}, nil
}

func (c *Client) service(ctx context.Context, accessToken string) (*gmailapi.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(src)}, c.opts...)
	return gmailapi.NewService(ctx, opts...)
}

// classify maps a Gmail API failure onto the send-error taxonomy.
func classify(details string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401:
			return mailerr.AuthExpired(details, err)
		case 403:
			return mailerr.PermissionDenied(details, err)
		case 429:
			return mailerr.RateLimited(details, err)
		}
	}
	return mailerr.Transport(details, err)
}
