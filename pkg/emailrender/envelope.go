package emailrender

import (
	"encoding/base64"
	"strings"
)

// Envelope holds the header values for one outgoing message.
// From must already be formatted; use Address for "Name <email>" form.
type Envelope struct {
	From    string
	Subject string
	ReplyTo string
	To      []string
}

// RenderedMessage is the fully assembled, provider-ready message.
type RenderedMessage struct {
	RawBase64URL string
}

// Address formats a display name and email into RFC 5322 address form.
// Returns "Name <email>" when a name is given, otherwise just the email.
// Non-ASCII names pass through untouched; input validation is the
// caller's concern.
func Address(name, email string) string {
	if name == "" {
		return email
	}
	return name + " <" + email + ">"
}

// Assemble serializes headers and the rendered HTML into the raw wire
// format Gmail expects: RFC 5322 headers, a blank line, the body, all
// joined with CRLF and encoded as unpadded base64url.
func Assemble(env Envelope, html string) RenderedMessage {
	lines := []string{
		"To: " + strings.Join(env.To, ", "),
		"From: " + env.From,
		"Subject: " + env.Subject,
	}
	if env.ReplyTo != "" {
		lines = append(lines, "Reply-To: "+env.ReplyTo)
	}
	lines = append(lines,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		html,
	)

	raw := strings.Join(lines, "\r\n")
	return RenderedMessage{RawBase64URL: base64.RawURLEncoding.EncodeToString([]byte(raw))}
}
