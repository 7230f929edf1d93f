package session

import "errors"

var (
	// ErrInvalidToken is returned by the codec for any decode failure:
	// signature mismatch, wrong secret, malformed structure, or expiry.
	// Callers must not distinguish these causes in responses.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid session configuration.
	ErrConfig = errors.New("invalid session config")
)
