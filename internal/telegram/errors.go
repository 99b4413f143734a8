// Package telegram wraps the Telegram Bot API client behind the narrow
// surface the gateway needs (send, membership lookup, webhook management)
// and translates platform failures into the local delivery error taxonomy.
//
// The adapter performs no retries itself: retry and backoff policy live in
// the delivery engine, so this package only has to say *what* went wrong.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

// ErrorCode is the delivery error taxonomy shared with the engine and the
// ledger. Codes are stable strings persisted in delivery task rows.
type ErrorCode string

const (
	CodeRateLimited          ErrorCode = "RATE_LIMITED"
	CodeRecipientBlocked     ErrorCode = "RECIPIENT_BLOCKED"
	CodeRecipientUnavailable ErrorCode = "RECIPIENT_UNAVAILABLE"
	CodePayloadRejected      ErrorCode = "PAYLOAD_REJECTED"
	CodeTransientNetwork     ErrorCode = "TRANSIENT_NETWORK_ERROR"
	CodeUnknown              ErrorCode = "UNKNOWN"
)

// SendError is a classified platform failure.
//
// RetryAfter is only meaningful for CodeRateLimited and carries the
// platform-provided floor for the next attempt.
type SendError struct {
	Code       ErrorCode
	RetryAfter time.Duration
	cause      error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("telegram: %s: %v", e.Code, e.cause)
	}
	return fmt.Sprintf("telegram: %s", e.Code)
}

// Unwrap exposes the underlying platform error for errors.Is/As chains.
func (e *SendError) Unwrap() error { return e.cause }

// Retryable reports whether the engine may schedule another attempt for this
// class of failure. Unknown codes are retryable here; the engine separately
// caps unclassified failures at a single retry.
func (e *SendError) Retryable() bool {
	switch e.Code {
	case CodeRateLimited, CodeTransientNetwork, CodeUnknown:
		return true
	}
	return false
}

// ClassRule maps a lowercase substring of a platform error description to a
// taxonomy code.
type ClassRule struct {
	Substring string
	Code      ErrorCode
}

// ClassificationTable resolves platform error descriptions to taxonomy codes.
// The platform does not document its error strings exhaustively, so the table
// is configuration, not hardwired logic; descriptions matching no rule fall
// back to the category default of the HTTP-level error.
type ClassificationTable []ClassRule

// DefaultClassificationTable covers the error descriptions observed in
// production. First match wins.
func DefaultClassificationTable() ClassificationTable {
	return ClassificationTable{
		{"bot was blocked", CodeRecipientBlocked},
		{"blocked by the user", CodeRecipientBlocked},
		{"user is deactivated", CodeRecipientUnavailable},
		{"chat not found", CodeRecipientUnavailable},
		{"bot was kicked", CodeRecipientBlocked},
		{"have no rights", CodeRecipientBlocked},
		{"message is too long", CodePayloadRejected},
		{"can't parse entities", CodePayloadRejected},
		{"wrong file identifier", CodePayloadRejected},
		{"wrong remote file", CodePayloadRejected},
	}
}

// lookup returns the code for description, or fallback when no rule matches.
func (t ClassificationTable) lookup(description string, fallback ErrorCode) ErrorCode {
	low := strings.ToLower(description)
	for _, r := range t {
		if strings.Contains(low, r.Substring) {
			return r.Code
		}
	}
	return fallback
}

// classify translates a go-telegram/bot error into a SendError.
func (t ClassificationTable) classify(err error) *SendError {
	if err == nil {
		return nil
	}

	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return &SendError{
			Code:       CodeRateLimited,
			RetryAfter: time.Duration(tooMany.RetryAfter) * time.Second,
			cause:      err,
		}
	}

	// Timeouts and transport failures follow the retryable path.
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return &SendError{Code: CodeTransientNetwork, cause: err}
	}

	switch {
	case errors.Is(err, bot.ErrorForbidden):
		return &SendError{Code: t.lookup(err.Error(), CodeRecipientBlocked), cause: err}
	case errors.Is(err, bot.ErrorBadRequest):
		return &SendError{Code: t.lookup(err.Error(), CodePayloadRejected), cause: err}
	case errors.Is(err, bot.ErrorNotFound):
		return &SendError{Code: CodeRecipientUnavailable, cause: err}
	}

	return &SendError{Code: CodeUnknown, cause: err}
}
