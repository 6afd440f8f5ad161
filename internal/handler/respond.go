package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
)

// errorResponse is the failure envelope. Details carries the short
// human-readable string from the taxonomy error; underlying causes are
// logged and audited but never relayed.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := mailerr.CodeOf(err)

	details := ""
	if e := mailerr.As(err); e != nil {
		details = e.Details
	}

	status := code.HTTPStatus()
	respondJSON(w, status, errorResponse{
		Success: false,
		Error:   http.StatusText(status),
		Details: details,
		Code:    string(code),
	})
}
