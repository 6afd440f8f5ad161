package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/Kadacheahmedrami/Email-Craft/internal/sendmail"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/logger"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
)

type identityKey struct{}

// ContextWithIdentity attaches the authenticated caller to the context.
// Session authentication itself lives upstream; whatever performs it
// calls this before the request reaches these handlers.
func ContextWithIdentity(ctx context.Context, id sendmail.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (sendmail.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(sendmail.Identity)
	return id, ok
}

// TrustedHeaderIdentity resolves the caller from X-User-* headers set by
// an authenticating reverse proxy. It must only be mounted behind one;
// the headers are trusted as-is.
func TrustedHeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		id := sendmail.Identity{
			UserID: userID,
			Email:  strings.TrimSpace(r.Header.Get("X-User-Email")),
			Name:   strings.TrimSpace(r.Header.Get("X-User-Name")),
		}

		ctx := ContextWithIdentity(r.Context(), id)
		ctx = logger.WithUserID(ctx, id.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireIdentity rejects requests that reach the API without an
// authenticated caller.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			respondError(w, r, mailerr.AuthRequired("authentication required", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}
