package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Kadacheahmedrami/Email-Craft/internal/sendmail"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
)

type sendRecipient struct {
	Email string `json:"email"`
}

type sendRequest struct {
	Subject     string                `json:"subject"`
	Template    string                `json:"template"`
	SenderName  string                `json:"senderName,omitempty"`
	ReplyTo     string                `json:"replyTo,omitempty"`
	Recipients  []sendRecipient       `json:"recipients"`
	Attachments []sendmail.Attachment `json:"attachments,omitempty"`
}

type sendResponse struct {
	Success           bool      `json:"success"`
	SendID            string    `json:"sendId"`
	ProviderMessageID string    `json:"providerMessageId"`
	ProviderThreadID  string    `json:"providerThreadId,omitempty"`
	RecipientCount    int       `json:"recipientCount"`
	Timestamp         time.Time `json:"timestamp"`
}

// SendEmail handles POST /api/chats/{chatID}/send.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	if err := h.guardChat(r, identity.UserID, chatID); err != nil {
		respondError(w, r, err)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, mailerr.Validation("invalid JSON body"))
		return
	}

	recipients := make([]sendmail.Recipient, len(req.Recipients))
	for i, rcpt := range req.Recipients {
		recipients[i] = sendmail.Recipient{Email: rcpt.Email}
	}

	receipt, err := h.sender.Send(r.Context(), identity, sendmail.SendRequest{
		ChatID:      chatID,
		Subject:     req.Subject,
		SenderName:  req.SenderName,
		ReplyTo:     req.ReplyTo,
		Template:    req.Template,
		Recipients:  recipients,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.log.WarnContext(r.Context(), "send rejected",
			slog.String("chat_id", chatID),
			slog.String("code", string(mailerr.CodeOf(err))),
			slog.String("error", err.Error()))
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sendResponse{
		Success:           true,
		SendID:            receipt.SendID.String(),
		ProviderMessageID: receipt.ProviderMessageID,
		ProviderThreadID:  receipt.ProviderThreadID,
		RecipientCount:    receipt.RecipientCount,
		Timestamp:         receipt.Timestamp,
	})
}

func (h *Handler) guardChat(r *http.Request, userID, chatID string) error {
	if chatID == "" {
		return mailerr.Validation("chat reference is required")
	}
	if h.chats == nil {
		return nil
	}

	owns, err := h.chats.OwnsChat(r.Context(), userID, chatID)
	if err != nil {
		return mailerr.Transport("failed to verify chat ownership", err)
	}
	if !owns {
		return mailerr.PermissionDenied("chat does not belong to the caller", nil)
	}
	return nil
}
