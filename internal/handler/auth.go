package handler

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/token"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 600 // seconds
)

// Connect handles GET /api/auth/google/connect. It issues a state value,
// pins it to the browser in a signed cookie, and redirects to the Google
// consent screen.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		respondError(w, r, mailerr.Transport("failed to generate state", err))
		return
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	h.cookies.Set(w, stateCookie, state, stateTTL)
	http.Redirect(w, r, h.connector.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /api/auth/google/callback. It verifies the state
// round-trip, exchanges the code, and stores the grant for the caller.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	state, err := h.cookies.Get(r, stateCookie)
	if err != nil || state == "" || state != r.URL.Query().Get("state") {
		respondError(w, r, mailerr.Validation("oauth state mismatch"))
		return
	}
	h.cookies.Delete(w, stateCookie)

	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, r, mailerr.Validation("authorization code is required"))
		return
	}

	grant, info, err := h.connector.Exchange(r.Context(), identity.UserID, code)
	if err != nil {
		respondError(w, r, classifyConnectErr(err))
		return
	}

	if err := h.grants.Upsert(r.Context(), grant); err != nil {
		respondError(w, r, mailerr.Transport("failed to store mailbox authorization", err))
		return
	}

	h.log.InfoContext(r.Context(), "mailbox connected",
		slog.String("user_id", identity.UserID),
		slog.String("mailbox", info.Email))

	respondJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Email   string `json:"email"`
		Name    string `json:"name,omitempty"`
	}{Success: true, Email: info.Email, Name: info.Name})
}

// classifyConnectErr maps consent-flow failures onto the taxonomy.
// A scope the user unchecked is a permission problem; everything else
// about the exchange is a validation or transport problem.
func classifyConnectErr(err error) error {
	switch {
	case errors.Is(err, token.ErrScopeMissing):
		return mailerr.PermissionDenied("mail-send permission was not granted", err)
	case errors.Is(err, token.ErrRefreshTokenMissing):
		return mailerr.AuthRequired("authorization did not include offline access", err)
	case errors.Is(err, token.ErrEmailNotVerified):
		return mailerr.PermissionDenied("google account email is not verified", err)
	case errors.Is(err, token.ErrExchangeFailed):
		return mailerr.Validation("authorization code was rejected")
	default:
		return mailerr.Transport("failed to connect mailbox", err)
	}
}
