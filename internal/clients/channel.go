package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Channel talks to the channel service, which knows which channels a
// giveaway requires subscription to.
type Channel struct {
	base
}

// NewChannel builds a Channel client; an empty baseURL disables the
// subscription gate entirely.
func NewChannel(baseURL string, timeout time.Duration) *Channel {
	return &Channel{base: newBase("channel", baseURL, timeout)}
}

// SubscriptionRequirements lists the channel IDs a user must be subscribed
// to before joining the giveaway.
func (c *Channel) SubscriptionRequirements(ctx context.Context, giveawayID int64) ([]int64, error) {
	var out struct {
		ChannelIDs []int64 `json:"channel_ids"`
	}
	path := fmt.Sprintf("/api/channels/requirements/%d", giveawayID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.ChannelIDs, nil
}
