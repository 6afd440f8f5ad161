package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Kadacheahmedrami/Email-Craft/internal/sendmail"
	"github.com/Kadacheahmedrami/Email-Craft/internal/storage"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type recordResponse struct {
	ID             string            `json:"id"`
	ChatID         string            `json:"chatId"`
	Subject        string            `json:"subject"`
	SenderName     string            `json:"senderName,omitempty"`
	SenderEmail    string            `json:"senderEmail"`
	Recipients     []string          `json:"recipients"`
	Status         string            `json:"status"`
	ErrorCode      string            `json:"errorCode,omitempty"`
	ErrorMessage   string            `json:"errorMessage,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	SentAt         *time.Time        `json:"sentAt,omitempty"`
	RecipientCount int               `json:"recipientCount"`
}

type listResponse struct {
	Success bool             `json:"success"`
	Sends   []recordResponse `json:"sends"`
}

func toRecordResponse(rec *sendmail.Record) recordResponse {
	emails := make([]string, len(rec.Recipients))
	for i, r := range rec.Recipients {
		emails[i] = r.Email
	}
	return recordResponse{
		ID:             rec.ID.String(),
		ChatID:         rec.ChatID,
		Subject:        rec.Subject,
		SenderName:     rec.SenderName,
		SenderEmail:    rec.SenderEmail,
		Recipients:     emails,
		Status:         string(rec.Status),
		ErrorCode:      rec.ErrorCode,
		ErrorMessage:   rec.ErrorMessage,
		Metadata:       rec.Metadata,
		CreatedAt:      rec.CreatedAt,
		SentAt:         rec.SentAt,
		RecipientCount: len(rec.Recipients),
	}
}

// ListSends handles GET /api/sends.
func (h *Handler) ListSends(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	limit, offset := pagination(r)

	records, err := h.records.ListByOwner(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		respondError(w, r, mailerr.Transport("failed to load send history", err))
		return
	}
	respondList(w, records)
}

// ListChatSends handles GET /api/chats/{chatID}/sends.
func (h *Handler) ListChatSends(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	if err := h.guardChat(r, identity.UserID, chatID); err != nil {
		respondError(w, r, err)
		return
	}

	limit, offset := pagination(r)
	records, err := h.records.ListByChat(r.Context(), identity.UserID, chatID, limit, offset)
	if err != nil {
		respondError(w, r, mailerr.Transport("failed to load send history", err))
		return
	}
	respondList(w, records)
}

// GetSend handles GET /api/sends/{sendID}.
func (h *Handler) GetSend(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "sendID"))
	if err != nil {
		respondError(w, r, mailerr.Validation("invalid send id"))
		return
	}

	rec, err := h.records.Get(r.Context(), identity.UserID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, errorResponse{
				Success: false,
				Error:   http.StatusText(http.StatusNotFound),
				Details: "send record not found",
				Code:    "NOT_FOUND",
			})
			return
		}
		respondError(w, r, mailerr.Transport("failed to load send record", err))
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Success bool           `json:"success"`
		Send    recordResponse `json:"send"`
	}{Success: true, Send: toRecordResponse(rec)})
}

func respondList(w http.ResponseWriter, records []*sendmail.Record) {
	out := make([]recordResponse, len(records))
	for i, rec := range records {
		out[i] = toRecordResponse(rec)
	}
	respondJSON(w, http.StatusOK, listResponse{Success: true, Sends: out})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
