// Package apperrors holds the sentinel errors shared by the relay, the store
// and the transport. Wrap them with %w and check with errors.Is.
package apperrors

import "errors"

var (
	// ErrValidation marks an inbound payload with a missing or invalid field.
	ErrValidation = errors.New("validation error")
	// ErrPersistence marks a failed read or write against the message store.
	ErrPersistence = errors.New("persistence error")
	// ErrConnection marks a transport failure on a single connection.
	ErrConnection = errors.New("connection error")
	// ErrRateLimited marks an event dropped by a per-connection limiter.
	ErrRateLimited = errors.New("rate limit exceeded")
)
