package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Requirement schema errors
	ErrMissingField     = errors.New("requirement field missing")
	ErrInvalidThreshold = errors.New("requirement threshold invalid")
	ErrInvalidSchema    = errors.New("requirement schema invalid")
	ErrUnknownKind      = errors.New("requirement kind not recognized")

	// Evaluation errors
	ErrMissingEvent = errors.New("triggering event data required")
	ErrNoBadges     = errors.New("no badge definitions available")

	// Store errors
	ErrUserNotFound      = errors.New("user not found")
	ErrBadgeNotFound     = errors.New("badge not found")
	ErrUnsupportedDriver = errors.New("unsupported store driver")
	ErrStoreUnavailable  = errors.New("attempt store unavailable")
)
