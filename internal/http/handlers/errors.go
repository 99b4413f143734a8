// HTTP-layer error codes used across all API endpoints.
//
// These constants are mapped to HTTP responses via the `fail()` helper in
// this package and give callers a stable, machine-readable error taxonomy
// that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Generic codes (bad_request, not_found, conflict) mirror common HTTP
//     status semantics.
//   - Domain-specific codes are reserved for business errors that a status
//     alone cannot convey.

package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeEnqueueFailed    = "enqueue_failed"
	ErrCodeStatusFailed     = "status_failed"
	ErrCodeWebhookFailed    = "webhook_failed"
	ErrCodePlatformFailed   = "platform_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
