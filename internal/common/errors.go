// Package common defines sentinel errors shared by the repositories, services
// and the application layer. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound        = errors.New("not found")
	ErrorAlreadyExists   = errors.New("already exists")
	ErrorInvalidArgument = errors.New("invalid argument")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorForbidden     = errors.New("forbidden")
	ErrorBanned        = errors.New("account banned")
	ErrorQuotaExceeded = errors.New("quota exceeded")
	ErrPaymentFailed   = errors.New("payment failed")

	// Writes carry no version, so this is never returned today. It is kept for an
	// optional conditional-write mode.
	ErrVersionConflict = errors.New("version conflict")
)
