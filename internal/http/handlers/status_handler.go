// Delivery status endpoints.
//
//   - GET    /api/v1/tasks/{id}                       (single task)
//   - DELETE /api/v1/tasks/{id}                       (cancel if not started)
//   - GET    /api/v1/batches/{id}/status              (batch aggregate)
//   - GET    /api/v1/giveaways/{id}/delivery-status   (per-giveaway aggregate)
//
// Aggregates are computed from constituent task rows at query time; there is
// no batch-level status row to drift out of sync.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/azatarm-prog/telegive-bot-service/internal/repo"
)

// BatchStatusResponse wraps the batch aggregate with a completion flag and
// the permanently failed recipients with their last error code.
type BatchStatusResponse struct {
	repo.BatchSummary
	Complete         bool                   `json:"complete"`
	FailedRecipients []repo.FailedRecipient `json:"failed_recipients"`
}

// GiveawayStatusResponse combines the per-giveaway aggregate with the list
// of permanently failed recipients, each with the error code its last
// attempt ended on, for operator follow-up.
type GiveawayStatusResponse struct {
	repo.GiveawaySummary
	FailedRecipients []repo.FailedRecipient `json:"failed_recipients"`
}

// GetTask returns one delivery task by id.
func (h *Handlers) GetTask(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task id must be a UUID")
		return
	}

	task, err := repo.GetTask(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "task not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeStatusFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, task)
}

// CancelTask withdraws a task that has not yet reached a worker. Tasks that
// are in flight or already terminal cannot be cancelled and return 409.
func (h *Handlers) CancelTask(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task id must be a UUID")
		return
	}

	err := repo.Cancel(c.Request.Context(), h.db, id)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "task not found")
	case errors.Is(err, repo.ErrStaleTransition):
		fail(c, http.StatusConflict, ErrCodeConflict, "task already started or finished")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeStatusFailed, err.Error())
	}
}

// GetBatchStatus returns the aggregate outcome of a bulk batch.
func (h *Handlers) GetBatchStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "batch id must be a UUID")
		return
	}

	summary, err := repo.BatchStatus(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "batch not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeStatusFailed, err.Error())
		return
	}
	failed, err := repo.FailedRecipientsByBatch(c.Request.Context(), h.db, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatusFailed, err.Error())
		return
	}
	if failed == nil {
		failed = []repo.FailedRecipient{}
	}
	ok(c, http.StatusOK, BatchStatusResponse{BatchSummary: summary, Complete: summary.Complete(), FailedRecipients: failed})
}

// GetGiveawayStatus returns delivery outcomes across every task tied to a
// giveaway, regardless of batch.
func (h *Handlers) GetGiveawayStatus(c *gin.Context) {
	giveawayID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || giveawayID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "giveaway id must be a positive integer")
		return
	}

	summary, err := repo.DeliveryStatusByGiveaway(c.Request.Context(), h.db, giveawayID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no deliveries for giveaway")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeStatusFailed, err.Error())
		return
	}

	failed, err := repo.FailedRecipientsByGiveaway(c.Request.Context(), h.db, giveawayID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatusFailed, err.Error())
		return
	}
	if failed == nil {
		failed = []repo.FailedRecipient{}
	}
	ok(c, http.StatusOK, GiveawayStatusResponse{GiveawaySummary: summary, FailedRecipients: failed})
}
