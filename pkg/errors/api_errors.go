package errors

import "errors"

// Sentinel errors shared by repositories and services
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("resource not found")
	ErrDuplicate          = errors.New("duplicate record")
	ErrCircuitOpen        = errors.New("circuit breaker is open")
	ErrEncryptionKeyUnset = errors.New("ENCRYPTION_KEY environment variable is required for LGPD compliance")
)

// Invalid wraps a plain user-facing message as a ValidationError
func Invalid(msg string) error {
	return NewValidationError("", msg)
}
