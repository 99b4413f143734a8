// Webhook endpoints.
//
//   - POST   /webhook/{token}   (inbound platform updates)
//   - POST   /api/v1/webhook    (register webhook URL with the platform)
//   - DELETE /api/v1/webhook    (deregister)
//
// Ingestion always answers 200 once the payload is queued: processing is
// decoupled from the HTTP response so the platform's retry timer is never
// held by handler work.
package handlers

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azatarm-prog/telegive-bot-service/internal/http/middleware"
	"github.com/azatarm-prog/telegive-bot-service/internal/sysutil"
)

// SetWebhookRequest is the JSON payload for registering the webhook URL.
type SetWebhookRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// ReceiveUpdate ingests one platform update. The token path segment must
// match the bot token; a mismatch is answered 404 without revealing whether
// the path exists. Valid requests are answered 200 regardless of what the
// payload turns out to be — malformed and duplicate updates are logged and
// dropped downstream.
func (h *Handlers) ReceiveUpdate(c *gin.Context) {
	token := c.Param("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.botToken)) != 1 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "not found")
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	h.ingest.Process(c.Request.Context(), raw)
	ok(c, http.StatusOK, gin.H{"ok": true})
}

// SetWebhook registers the given URL with the platform so updates start
// flowing to this service.
func (h *Handlers) SetWebhook(c *gin.Context) {
	var req SetWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "url required")
		return
	}

	if err := h.admin.SetWebhook(c.Request.Context(), req.URL); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Str("url", req.URL).Msg("set webhook failed")
		fail(c, http.StatusBadGateway, ErrCodeWebhookFailed, "platform rejected webhook registration")
		return
	}
	ok(c, http.StatusOK, gin.H{"ok": true, "url": req.URL})
}

// DeleteWebhook deregisters the webhook. With ?drop_pending=true the
// platform also discards updates queued on its side.
func (h *Handlers) DeleteWebhook(c *gin.Context) {
	drop := sysutil.IsTruthy(c.Query("drop_pending"))

	if err := h.admin.DeleteWebhook(c.Request.Context(), drop); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("delete webhook failed")
		fail(c, http.StatusBadGateway, ErrCodeWebhookFailed, "platform rejected webhook removal")
		return
	}
	noContent(c)
}
