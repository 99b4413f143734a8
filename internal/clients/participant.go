package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Participant talks to the participant service, which owns registration
// state, captcha validation, and winner selection results.
type Participant struct {
	base
}

// NewParticipant builds a Participant client; an empty baseURL disables it.
func NewParticipant(baseURL string, timeout time.Duration) *Participant {
	return &Participant{base: newBase("participant", baseURL, timeout)}
}

// UserInfo is the profile snapshot forwarded at registration.
type UserInfo struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Registration is the participant service's answer to a join attempt.
type Registration struct {
	Success         bool     `json:"success"`
	AlreadyJoined   bool     `json:"already_participating"`
	RequiresCaptcha bool     `json:"requires_captcha"`
	CaptchaQuestion string   `json:"captcha_question,omitempty"`
	CaptchaOptions  []string `json:"captcha_options,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Register enrolls user userID into the giveaway. The service decides
// whether a captcha gate applies.
func (c *Participant) Register(ctx context.Context, giveawayID, userID int64, info UserInfo) (*Registration, error) {
	req := struct {
		GiveawayID int64    `json:"giveaway_id"`
		UserID     int64    `json:"user_id"`
		UserInfo   UserInfo `json:"user_info"`
	}{giveawayID, userID, info}

	var out Registration
	if err := c.do(ctx, http.MethodPost, "/api/participants/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CaptchaVerdict is the outcome of a captcha answer submission.
type CaptchaVerdict struct {
	Success bool   `json:"success"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

// ValidateCaptcha submits a captcha answer for the user's pending challenge.
func (c *Participant) ValidateCaptcha(ctx context.Context, giveawayID, userID int64, answer string) (*CaptchaVerdict, error) {
	req := struct {
		GiveawayID int64  `json:"giveaway_id"`
		UserID     int64  `json:"user_id"`
		Answer     string `json:"captcha_answer"`
	}{giveawayID, userID, answer}

	var out CaptchaVerdict
	if err := c.do(ctx, http.MethodPost, "/api/participants/validate-captcha", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParticipationStatus reports where a user stands in a giveaway.
type ParticipationStatus struct {
	Participating bool   `json:"participating"`
	CaptchaPassed bool   `json:"captcha_completed"`
	Error         string `json:"error,omitempty"`
}

// Status looks up the user's participation state.
func (c *Participant) Status(ctx context.Context, giveawayID, userID int64) (*ParticipationStatus, error) {
	var out ParticipationStatus
	path := fmt.Sprintf("/api/participants/status/%d/%d", giveawayID, userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WinnerStatus reports whether the user won the concluded giveaway.
type WinnerStatus struct {
	IsWinner bool   `json:"is_winner"`
	Error    string `json:"error,omitempty"`
}

// Winner looks up the user's result for a concluded giveaway.
func (c *Participant) Winner(ctx context.Context, giveawayID, userID int64) (*WinnerStatus, error) {
	var out WinnerStatus
	path := fmt.Sprintf("/api/participants/winner-status/%d/%d", giveawayID, userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
