// Package sendmail orchestrates one email send end to end: request
// validation, the PENDING audit record, token acquisition, pre-flight,
// rendering, transmission, and reconciliation of the record to a
// terminal state.
package sendmail

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a send record. It moves monotonically
// from PENDING to exactly one terminal state and is never reopened.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Recipient is a single destination address.
type Recipient struct {
	Email string `json:"email"`
}

// Attachment is descriptive metadata only; the bytes live in the upload
// subsystem and are not part of the wire message.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Record is the durable audit row tracking one send attempt.
// Every attempt creates a new Record; terminal rows are never mutated.
type Record struct {
	CreatedAt    time.Time
	SentAt       *time.Time
	Metadata     map[string]string
	OwnerID      string
	ChatID       string
	Subject      string
	SenderName   string
	SenderEmail  string
	BodyHTML     string
	ErrorMessage string
	ErrorCode    string
	Status       Status
	Recipients   []Recipient
	Attachments  []Attachment
	ID           uuid.UUID
}

// Identity is the authenticated caller. SenderEmail always derives from
// it, never from request input.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// SendRequest is the caller-supplied portion of a send.
type SendRequest struct {
	ChatID      string
	Subject     string
	SenderName  string
	ReplyTo     string
	Template    string // authored HTML body, treated as untrusted
	Recipients  []Recipient
	Attachments []Attachment
}

// Receipt is returned to the caller after the provider accepts a message.
type Receipt struct {
	Timestamp         time.Time
	SendID            uuid.UUID
	ProviderMessageID string
	ProviderThreadID  string
	RecipientCount    int
}

// Metadata keys for provider identifiers stored on SENT records.
const (
	MetaProviderMessageID = "providerMessageId"
	MetaProviderThreadID  = "providerThreadId"
)
