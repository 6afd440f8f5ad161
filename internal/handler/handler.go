// Package handler exposes the send pipeline over HTTP: the send endpoint,
// send history queries, and the Google consent flow that creates grants.
package handler

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Kadacheahmedrami/Email-Craft/internal/sendmail"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/cookie"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/token"
)

// Sender runs one send attempt end to end.
type Sender interface {
	Send(ctx context.Context, sender sendmail.Identity, req sendmail.SendRequest) (*sendmail.Receipt, error)
}

// RecordReader serves the send history queries.
type RecordReader interface {
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*sendmail.Record, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*sendmail.Record, error)
	ListByChat(ctx context.Context, ownerID, chatID string, limit, offset int) ([]*sendmail.Record, error)
}

// GrantWriter persists a freshly authorized grant.
type GrantWriter interface {
	Upsert(ctx context.Context, g *token.Grant) error
}

// Connector runs the Google consent flow.
type Connector interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, userID, code string) (*token.Grant, *token.UserInfo, error)
}

// ChatGuard answers whether a user owns a chat. Chats live in an external
// system; a nil guard skips the check.
type ChatGuard interface {
	OwnsChat(ctx context.Context, userID, chatID string) (bool, error)
}

// Handler holds the HTTP handler state.
type Handler struct {
	sender    Sender
	records   RecordReader
	grants    GrantWriter
	connector Connector
	chats     ChatGuard
	cookies   *cookie.Manager
	log       *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithChatGuard enables chat ownership checks on chat-scoped routes.
func WithChatGuard(g ChatGuard) Option {
	return func(h *Handler) {
		h.chats = g
	}
}

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		h.log = log
	}
}

// New creates the handler.
func New(sender Sender, records RecordReader, grants GrantWriter, connector Connector, cookies *cookie.Manager, opts ...Option) *Handler {
	h := &Handler{
		sender:    sender,
		records:   records,
		grants:    grants,
		connector: connector,
		cookies:   cookies,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = slog.New(slog.DiscardHandler)
	}
	return h
}

// Routes mounts the API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity)

			r.Get("/auth/google/connect", h.Connect)
			r.Get("/auth/google/callback", h.Callback)

			r.Post("/chats/{chatID}/send", h.SendEmail)
			r.Get("/chats/{chatID}/sends", h.ListChatSends)
			r.Get("/sends", h.ListSends)
			r.Get("/sends/{sendID}", h.GetSend)
		})
	})
}
