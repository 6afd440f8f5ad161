// Package storage holds the PostgreSQL repositories behind the send
// pipeline: OAuth grants and the send audit log.
package storage

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyTerminal is returned when a terminal transition targets a
	// record that is no longer PENDING. Terminal rows are never reopened
	// or rewritten.
	ErrAlreadyTerminal = errors.New("storage: record already terminal")
)
