// Package clients holds thin HTTP clients for the platform's sibling
// services (auth, participant, giveaway, channel). Each client wraps a base
// URL with JSON request/response plumbing; business interpretation of the
// responses belongs to the service layer.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrDisabled is returned when a client has no base URL configured.
var ErrDisabled = errors.New("clients: service not configured")

// ErrUnavailable covers transport failures and 5xx responses: the service
// could not answer, as opposed to answering "no".
var ErrUnavailable = errors.New("clients: service unavailable")

// StatusError is a non-2xx response carrying an application-level answer.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("clients: %s returned %d: %s", e.Service, e.StatusCode, e.Body)
}

const maxResponseBytes = 1 << 20

type base struct {
	name    string
	baseURL string
	http    *http.Client
}

func newBase(name, baseURL string, timeout time.Duration) base {
	return base{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (b base) enabled() bool { return b.baseURL != "" }

// do performs a JSON request against path. in may be nil for bodyless
// methods; out may be nil to discard the response body.
func (b base) do(ctx context.Context, method, path string, in, out any) error {
	if !b.enabled() {
		return ErrDisabled
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("clients: %s: encode request: %w", b.name, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("clients: %s: build request: %w", b.name, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("service", b.name).Str("path", path).Msg("service call failed")
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, b.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrUnavailable, b.name, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		log.Warn().Str("service", b.name).Str("path", path).Int("status", resp.StatusCode).Msg("service error response")
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, b.name, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{Service: b.name, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("clients: %s: decode response: %w", b.name, err)
		}
	}
	return nil
}
