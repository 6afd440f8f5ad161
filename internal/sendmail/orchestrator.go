package sendmail

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/emailrender"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/gmail"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
)

// TokenSource yields a currently-valid access token for a user.
type TokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// Transport issues the provider calls: pre-flight and transmission.
type Transport interface {
	Verify(ctx context.Context, accessToken string) (*gmail.Profile, error)
	Send(ctx context.Context, accessToken, raw string) (*gmail.SendResult, error)
}

// Renderer transforms authored HTML into a mail-safe document.
type Renderer interface {
	Render(ctx context.Context, htmlBody string) (string, error)
}

// RecordStore persists send records. Terminal transitions must be
// conditional on the row still being PENDING.
type RecordStore interface {
	Create(ctx context.Context, rec *Record) error
	SaveRenderedBody(ctx context.Context, id uuid.UUID, bodyHTML string) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, metadata map[string]string) error
	MarkFailed(ctx context.Context, id uuid.UUID, code, errorMessage string) error
}

// Orchestrator runs the send pipeline.
//
// It is deliberately not idempotent: two calls with identical input
// produce two Records and, if both transmissions succeed, two delivered
// emails. Deduplication is the caller's responsibility.
type Orchestrator struct {
	tokens    TokenSource
	transport Transport
	renderer  Renderer
	records   RecordStore
	log       *slog.Logger
	now       func() time.Time
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(tokens TokenSource, transport Transport, renderer Renderer, records RecordStore, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		tokens:    tokens,
		transport: transport,
		renderer:  renderer,
		records:   records,
		log:       log,
		now:       time.Now,
	}
}

// Send executes one send attempt.
//
// Validation failures reject the request before any audit row exists.
// Every failure after the PENDING row is created transitions it to
// FAILED with a taxonomy code and the underlying error text verbatim.
func (o *Orchestrator) Send(ctx context.Context, sender Identity, req SendRequest) (*Receipt, error) {
	if strings.TrimSpace(req.ChatID) == "" {
		return nil, mailerr.Validation("chat reference is required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, mailerr.Validation("subject is required")
	}
	if strings.TrimSpace(req.Template) == "" {
		return nil, mailerr.Validation("email body is required")
	}

	recipients := FilterRecipients(req.Recipients)
	if len(recipients) == 0 {
		return nil, mailerr.Validation("no valid recipients")
	}

	senderName := req.SenderName
	if senderName == "" {
		senderName = sender.Name
	}

	rec := &Record{
		ID:          uuid.New(),
		OwnerID:     sender.UserID,
		ChatID:      req.ChatID,
		Subject:     req.Subject,
		SenderName:  senderName,
		SenderEmail: sender.Email,
		Recipients:  recipients,
		BodyHTML:    req.Template,
		Attachments: req.Attachments,
		Status:      StatusPending,
		CreatedAt:   o.now(),
	}
	if err := o.records.Create(ctx, rec); err != nil {
		return nil, mailerr.Transport("failed to create send record", err)
	}

	accessToken, err := o.tokens.AccessToken(ctx, sender.UserID)
	if err != nil {
		// No transport call is attempted against a grant we cannot vouch for.
		o.fail(ctx, rec.ID, err)
		return nil, err
	}

	profile, err := o.transport.Verify(ctx, accessToken)
	if err != nil {
		o.fail(ctx, rec.ID, err)
		return nil, err
	}
	o.log.InfoContext(ctx, "pre-flight passed",
		slog.String("send_id", rec.ID.String()),
		slog.String("mailbox", profile.EmailAddress))

	bodyHTML, err := o.renderer.Render(ctx, req.Template)
	if err != nil {
		if mailerr.As(err) == nil {
			err = mailerr.Transport("failed to render email body", err)
		}
		o.fail(ctx, rec.ID, err)
		return nil, err
	}
	if err := o.records.SaveRenderedBody(ctx, rec.ID, bodyHTML); err != nil {
		err = mailerr.Transport("failed to snapshot rendered body", err)
		o.fail(ctx, rec.ID, err)
		return nil, err
	}

	to := make([]string, len(recipients))
	for i, r := range recipients {
		to[i] = r.Email
	}
	msg := emailrender.Assemble(emailrender.Envelope{
		From:    emailrender.Address(senderName, sender.Email),
		To:      to,
		Subject: req.Subject,
		ReplyTo: req.ReplyTo,
	}, bodyHTML)

	result, err := o.transport.Send(ctx, accessToken, msg.RawBase64URL)
	if err != nil {
		o.fail(ctx, rec.ID, err)
		return nil, err
	}

	sentAt := o.now()
	metadata := map[string]string{
		MetaProviderMessageID: result.MessageID,
		MetaProviderThreadID:  result.ThreadID,
	}
	// The provider may have accepted the message even if the caller has
	// gone away, so reconciliation runs on a detached context.
	if err := o.records.MarkSent(context.WithoutCancel(ctx), rec.ID, sentAt, metadata); err != nil {
		o.log.ErrorContext(ctx, "sent message but failed to reconcile record",
			slog.String("send_id", rec.ID.String()),
			slog.String("provider_message_id", result.MessageID),
			slog.String("error", err.Error()))
	}

	return &Receipt{
		SendID:            rec.ID,
		ProviderMessageID: result.MessageID,
		ProviderThreadID:  result.ThreadID,
		RecipientCount:    len(recipients),
		Timestamp:         sentAt,
	}, nil
}

// fail transitions the record to FAILED. The raw error text is recorded
// verbatim for operator diagnosis; callers only ever see the taxonomy
// code and its short details string.
func (o *Orchestrator) fail(ctx context.Context, id uuid.UUID, cause error) {
	code := string(mailerr.CodeOf(cause))
	if err := o.records.MarkFailed(context.WithoutCancel(ctx), id, code, cause.Error()); err != nil {
		o.log.ErrorContext(ctx, "failed to reconcile send record",
			slog.String("send_id", id.String()),
			slog.String("code", code),
			slog.String("error", err.Error()))
	}
}

// FilterRecipients keeps addresses that look deliverable: containing an
// "@" and a ".". Order is preserved.
func FilterRecipients(in []Recipient) []Recipient {
	out := make([]Recipient, 0, len(in))
	for _, r := range in {
		email := strings.TrimSpace(r.Email)
		if strings.Contains(email, "@") && strings.Contains(email, ".") {
			out = append(out, Recipient{Email: email})
		}
	}
	return out
}
