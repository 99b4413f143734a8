package clients

import (
	"context"
	"net/http"
	"time"
)

// Auth talks to the auth service for service-to-service token validation.
type Auth struct {
	base
}

// NewAuth builds an Auth client; an empty baseURL disables it, in which case
// callers fall back to static-token comparison.
func NewAuth(baseURL string, timeout time.Duration) *Auth {
	return &Auth{base: newBase("auth", baseURL, timeout)}
}

// ValidateServiceToken asks the auth service whether token identifies a
// trusted sibling service.
func (c *Auth) ValidateServiceToken(ctx context.Context, token string) (bool, error) {
	req := struct {
		Token string `json:"token"`
	}{token}
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/validate-token", req, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}
