package mailerr

import (
	"errors"
	"net/http"
)

// Code classifies a send-pipeline failure. The set is closed: callers can
// switch over it exhaustively, and the HTTP mapping below covers every member.
type Code string

const (
	// CodeValidation marks a malformed request or an empty recipient set.
	// No audit record exists for these failures.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeAuthRequired marks a missing grant, a grant without a refresh
	// token, or a grant that lacks the mail-send scope.
	CodeAuthRequired Code = "AUTH_REQUIRED"

	// CodeAuthExpired marks a failed refresh attempt or a token the
	// provider rejects as invalid.
	CodeAuthExpired Code = "AUTH_EXPIRED"

	// CodePermissionDenied marks a token the provider accepts but refuses
	// to let send mail (insufficient consent).
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// CodeRateLimited marks provider throttling. The pipeline does not
	// retry; the caller may try again later.
	CodeRateLimited Code = "RATE_LIMITED"

	// CodeTransport marks any other provider-side failure.
	CodeTransport Code = "TRANSPORT_ERROR"
)

// HTTPStatus maps a code to the response status for the send endpoint.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthRequired, CodeAuthExpired:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified send-pipeline failure.
//
// Details is the short human-readable string relayed to the caller.
// Err holds the underlying cause; its text is recorded verbatim in the
// audit row but never relayed to the end user.
type Error struct {
	Err     error
	Code    Code
	Details string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Details + ": " + e.Err.Error()
	}
	return e.Details
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Constructors, one per taxonomy member.

func Validation(details string) *Error {
	return &Error{Code: CodeValidation, Details: details}
}

func AuthRequired(details string, err error) *Error {
	return &Error{Code: CodeAuthRequired, Details: details, Err: err}
}

func AuthExpired(details string, err error) *Error {
	return &Error{Code: CodeAuthExpired, Details: details, Err: err}
}

func PermissionDenied(details string, err error) *Error {
	return &Error{Code: CodePermissionDenied, Details: details, Err: err}
}

func RateLimited(details string, err error) *Error {
	return &Error{Code: CodeRateLimited, Details: details, Err: err}
}

func Transport(details string, err error) *Error {
	return &Error{Code: CodeTransport, Details: details, Err: err}
}

// As extracts the classified error from err's chain.
// Returns nil if err carries no classification.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// CodeOf returns the taxonomy code for err, falling back to CodeTransport
// for unclassified errors so nothing escapes the closed set.
func CodeOf(err error) Code {
	if e := As(err); e != nil {
		return e.Code
	}
	return CodeTransport
}
