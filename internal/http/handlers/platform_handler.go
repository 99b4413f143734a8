// Direct bot-API lookups proxied for sibling services.
//
//   - POST /api/v1/check-membership    (channel membership verdict)
//   - GET  /api/v1/user-info/{id}      (user profile fields)
//
// These exist so upstream services can reuse this service's bot credentials
// instead of holding the token themselves.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/azatarm-prog/telegive-bot-service/internal/http/middleware"
	"github.com/azatarm-prog/telegive-bot-service/internal/telegram"
)

// CheckMembershipRequest identifies the channel and user to verify.
type CheckMembershipRequest struct {
	ChannelID int64 `json:"channel_id" binding:"required"`
	UserID    int64 `json:"user_id" binding:"required"`
}

// CheckMembershipResponse is the verdict. MembershipStatus carries the
// coarse status ("member", "not_member", "unknown"); IsMember is the
// boolean most callers want.
type CheckMembershipResponse struct {
	IsMember         bool      `json:"is_member"`
	MembershipStatus string    `json:"membership_status"`
	CheckedAt        time.Time `json:"checked_at"`
}

// CheckMembership answers whether a user belongs to a channel. A lookup the
// platform refuses (bot not admin of the channel, unknown channel) is a 502
// with status "unknown", not a membership verdict.
func (h *Handlers) CheckMembership(c *gin.Context) {
	var req CheckMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel_id and user_id required")
		return
	}

	m, err := h.platform.GetMembership(c.Request.Context(), req.ChannelID, req.UserID)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).
			Int64("channel_id", req.ChannelID).
			Int64("user_id", req.UserID).
			Msg("membership lookup failed")
		fail(c, http.StatusBadGateway, ErrCodePlatformFailed, "membership lookup failed")
		return
	}
	ok(c, http.StatusOK, CheckMembershipResponse{
		IsMember:         m == telegram.Member,
		MembershipStatus: string(m),
		CheckedAt:        time.Now().UTC(),
	})
}

// GetUserInfo returns the platform's profile fields for a user. The lookup
// only succeeds for users who have opened a chat with the bot; anyone else
// is a 404.
func (h *Handlers) GetUserInfo(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a positive integer")
		return
	}

	info, err := h.platform.GetUserInfo(c.Request.Context(), userID)
	if err != nil {
		var se *telegram.SendError
		if errors.As(err, &se) && !se.Retryable() {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not reachable")
			return
		}
		middleware.LoggerFrom(c).Warn().Err(err).Int64("user_id", userID).Msg("user info lookup failed")
		fail(c, http.StatusBadGateway, ErrCodePlatformFailed, "user info lookup failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"user_info": info})
}
