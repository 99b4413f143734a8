// Outbound delivery trigger endpoints.
//
//   - POST /api/v1/messages        (single recipient)
//   - POST /api/v1/messages/bulk   (fan-out to many recipients)
//   - POST /api/v1/announcements   (channel post with inline keyboard)
//
// All three return 202 Accepted with a task or batch id: delivery is
// asynchronous and callers poll the status endpoints for terminal outcomes.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
	"github.com/azatarm-prog/telegive-bot-service/internal/engine"
	"github.com/azatarm-prog/telegive-bot-service/internal/services"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for a single-recipient send.
type SendMessageRequest struct {
	RecipientID int64                 `json:"recipient_id" binding:"required"`
	GiveawayID  *int64                `json:"giveaway_id"`
	MessageType string                `json:"message_type"`
	Text        string                `json:"text"`
	PhotoURL    string                `json:"photo_url"`
	Keyboard    domain.InlineKeyboard `json:"keyboard"`
}

// BulkRecipient is one addressee of a bulk send. IsWinner selects between
// the batch's winner and loser message bodies.
type BulkRecipient struct {
	RecipientID int64 `json:"recipient_id" binding:"required"`
	IsWinner    bool  `json:"is_winner"`
}

// SendBulkRequest is the JSON payload for a bulk send. Either Text applies
// to every recipient, or WinnerMessage/LoserMessage are chosen per recipient
// by the IsWinner flag.
type SendBulkRequest struct {
	GiveawayID    *int64                `json:"giveaway_id"`
	MessageType   string                `json:"message_type"`
	Text          string                `json:"text"`
	WinnerMessage string                `json:"winner_message"`
	LoserMessage  string                `json:"loser_message"`
	Recipients    []BulkRecipient       `json:"recipients" binding:"required"`
	Keyboard      domain.InlineKeyboard `json:"keyboard"`
}

// AnnouncementRequest is the JSON payload for a channel announcement post.
// With ResultToken set the post carries a "view results" keyboard, otherwise
// a "participate" keyboard for the giveaway.
type AnnouncementRequest struct {
	ChannelID   int64  `json:"channel_id" binding:"required"`
	GiveawayID  int64  `json:"giveaway_id" binding:"required"`
	Text        string `json:"text" binding:"required"`
	PhotoURL    string `json:"photo_url"`
	ResultToken string `json:"result_token"`
}

// BatchAccepted is the response for an accepted bulk request.
type BatchAccepted struct {
	BatchID string `json:"batch_id"`
	Total   int    `json:"total"`
}

//
// Handlers
//

// SendMessage queues one message to one recipient and returns the created
// task. The task starts out pending; its terminal outcome is reached
// asynchronously and queried via GET /api/v1/tasks/{id}.
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" && req.PhotoURL == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text or photo_url required")
		return
	}
	if !validMessageType(req.MessageType) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown message_type")
		return
	}

	task, err := h.queue.EnqueueMessage(c.Request.Context(), engine.SingleRequest{
		RecipientID: req.RecipientID,
		GiveawayID:  req.GiveawayID,
		MessageType: req.MessageType,
		Content: domain.MessageContent{
			Text:     req.Text,
			PhotoURL: req.PhotoURL,
			Keyboard: req.Keyboard,
		},
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEnqueueFailed, err.Error())
		return
	}
	ok(c, http.StatusAccepted, task)
}

// SendBulk queues one message per recipient under a shared batch id. A
// single recipient's failure never aborts the batch; callers poll
// GET /api/v1/batches/{id}/status for the aggregate outcome.
func (h *Handlers) SendBulk(c *gin.Context) {
	var req SendBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Recipients) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipients required")
		return
	}
	if !validMessageType(req.MessageType) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown message_type")
		return
	}

	perWinner := req.WinnerMessage != "" || req.LoserMessage != ""
	if !perWinner && strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text or winner_message/loser_message required")
		return
	}

	recipients := make([]engine.BatchRecipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		br := engine.BatchRecipient{RecipientID: r.RecipientID, Text: req.Text}
		if perWinner {
			if r.IsWinner {
				br.Text = req.WinnerMessage
				br.MessageType = domain.MessageWinner
			} else {
				br.Text = req.LoserMessage
				br.MessageType = domain.MessageLoser
			}
		}
		recipients = append(recipients, br)
	}

	batchID, total, err := h.queue.EnqueueBatch(c.Request.Context(), engine.BatchRequest{
		GiveawayID:  req.GiveawayID,
		MessageType: req.MessageType,
		Recipients:  recipients,
		Keyboard:    req.Keyboard,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEnqueueFailed, err.Error())
		return
	}
	ok(c, http.StatusAccepted, BatchAccepted{BatchID: batchID, Total: total})
}

// PostAnnouncement queues a channel post for a giveaway: announcement text,
// optional photo, and an inline keyboard pointing either at participation or
// at published results.
func (h *Handlers) PostAnnouncement(c *gin.Context) {
	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel_id, giveaway_id and text required")
		return
	}

	keyboard := services.AnnouncementKeyboard(req.GiveawayID)
	if req.ResultToken != "" {
		keyboard = services.ResultsKeyboard(req.ResultToken)
	}

	gid := req.GiveawayID
	task, err := h.queue.EnqueueMessage(c.Request.Context(), engine.SingleRequest{
		RecipientID: req.ChannelID,
		GiveawayID:  &gid,
		MessageType: domain.MessageAnnouncement,
		Content: domain.MessageContent{
			Text:     req.Text,
			PhotoURL: req.PhotoURL,
			Keyboard: keyboard,
		},
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEnqueueFailed, err.Error())
		return
	}
	ok(c, http.StatusAccepted, task)
}
