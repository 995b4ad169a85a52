// Package apperr defines the stable failure kinds surfaced by the chat
// core. Callers branch with errors.Is; UIs key off Code.
package apperr

import "errors"

var (
	ErrValidationFailed    = errors.New("validation failed")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrWindowExpired       = errors.New("mutation window expired")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyDeleted      = errors.New("already deleted")
	ErrModerationDegraded  = errors.New("moderation degraded")
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrSendFailed is the generic user-facing send failure. Internal
	// diagnostics stay in logs, never in this error.
	ErrSendFailed = errors.New("failed to send message")
)

// Code returns a stable machine-readable code for err, or "internal"
// when err does not match any known kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrWindowExpired):
		return "window_expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyDeleted):
		return "already_deleted"
	case errors.Is(err, ErrModerationDegraded):
		return "moderation_degraded"
	case errors.Is(err, ErrResourceUnavailable):
		return "resource_unavailable"
	case errors.Is(err, ErrSendFailed):
		return "send_failed"
	default:
		return "internal"
	}
}
