package domain

import "errors"

// Taxonomía de errores compartida por repositorios, servicios y handlers.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidAudience  = errors.New("audience resolved to no recipients")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("forbidden")
	ErrRateLimited      = errors.New("rate limited")
)
