package auth

import "errors"

var (
	// ErrTokenInvalid is returned for malformed, expired or forged tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrPINMismatch is returned when a PIN does not match the stored hash.
	ErrPINMismatch = errors.New("auth: pin mismatch")

	// ErrPINNotSet is returned when no PIN hash is configured yet.
	ErrPINNotSet = errors.New("auth: pin not set")
)
