package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Giveaway talks to the giveaway service, the system of record for giveaway
// definitions and result tokens.
type Giveaway struct {
	base
}

// NewGiveaway builds a Giveaway client; an empty baseURL disables it.
func NewGiveaway(baseURL string, timeout time.Duration) *Giveaway {
	return &Giveaway{base: newBase("giveaway", baseURL, timeout)}
}

// GiveawayInfo is the subset of giveaway fields the bot acts on.
type GiveawayInfo struct {
	ID              int64  `json:"id"`
	ChannelID       int64  `json:"channel_id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	WinnerMessage   string `json:"winner_message,omitempty"`
	LoserMessage    string `json:"loser_message,omitempty"`
	RequiresCaptcha bool   `json:"requires_captcha"`
}

// ByID fetches a giveaway definition.
func (c *Giveaway) ByID(ctx context.Context, giveawayID int64) (*GiveawayInfo, error) {
	var out GiveawayInfo
	path := fmt.Sprintf("/api/giveaways/%d", giveawayID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ByResultToken resolves a result token from a view-results button back to
// its giveaway.
func (c *Giveaway) ByResultToken(ctx context.Context, token string) (*GiveawayInfo, error) {
	var out GiveawayInfo
	path := "/api/giveaways/token/" + url.PathEscape(token)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordMessageID reports the platform message ID of a posted announcement
// back to the giveaway service.
func (c *Giveaway) RecordMessageID(ctx context.Context, giveawayID, messageID int64) error {
	req := struct {
		MessageID int64 `json:"message_id"`
	}{messageID}
	path := fmt.Sprintf("/api/giveaways/%d/message-id", giveawayID)
	return c.do(ctx, http.MethodPut, path, req, nil)
}
