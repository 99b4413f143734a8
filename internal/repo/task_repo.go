package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
)

// ErrNoDueTask signals an empty poll: no task is claimable right now.
var ErrNoDueTask = errors.New("repo: no due task")

// ErrStaleTransition is returned when a status write finds the row no longer
// in the expected source state, e.g. a task cancelled while in flight was
// being attempted.
var ErrStaleTransition = errors.New("repo: stale transition")

// claimable are the states a worker may take a task from.
var claimable = []domain.TaskStatus{domain.StatusPending, domain.StatusFailedRetryable}

// CreateTask inserts a single delivery task.
func CreateTask(ctx context.Context, db *gorm.DB, t *domain.DeliveryTask) error {
	return db.WithContext(ctx).Create(t).Error
}

// CreateTasks inserts a batch of tasks in one statement per chunk. All rows
// share the caller-assigned batch ID.
func CreateTasks(ctx context.Context, db *gorm.DB, tasks []*domain.DeliveryTask) error {
	if len(tasks) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(tasks, 100).Error
}

// ClaimDue atomically moves the earliest-due claimable task to in_flight and
// returns it. The claim is a single guarded UPDATE: the status check and the
// attempt counter increment land together, so two workers can never take the
// same attempt. Returns ErrNoDueTask when nothing is due.
func ClaimDue(ctx context.Context, db *gorm.DB, now time.Time) (*domain.DeliveryTask, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Where("status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)", claimable, now).
		Order("next_attempt_at ASC").
		Limit(8).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		res := db.WithContext(ctx).
			Model(&domain.DeliveryTask{}).
			Where("id = ? AND status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)", id, claimable, now).
			Updates(map[string]any{
				"status":        domain.StatusInFlight,
				"attempt_count": gorm.Expr("attempt_count + 1"),
				"updated_at":    now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race for this row; try the next candidate.
			continue
		}
		return GetTask(ctx, db, id)
	}
	return nil, ErrNoDueTask
}

// GetTask fetches a task by ID.
func GetTask(ctx context.Context, db *gorm.DB, id string) (*domain.DeliveryTask, error) {
	var t domain.DeliveryTask
	if err := db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// MarkDelivered finalizes an in-flight task as delivered, recording the
// platform message ID and delivery time.
func MarkDelivered(ctx context.Context, db *gorm.DB, id string, messageID int64, at time.Time) error {
	return finalize(ctx, db, id, domain.StatusInFlight, map[string]any{
		"status":              domain.StatusDelivered,
		"telegram_message_id": messageID,
		"delivered_at":        at,
		"last_error_code":     nil,
		"updated_at":          at,
	})
}

// MarkRetryable returns an in-flight task to the retry queue with the error
// code and the time before which it must not be attempted again.
func MarkRetryable(ctx context.Context, db *gorm.DB, id, code string, nextAt time.Time) error {
	return finalize(ctx, db, id, domain.StatusInFlight, map[string]any{
		"status":          domain.StatusFailedRetryable,
		"last_error_code": code,
		"next_attempt_at": nextAt,
		"updated_at":      time.Now().UTC(),
	})
}

// MarkPermanent finalizes an in-flight task as permanently failed.
func MarkPermanent(ctx context.Context, db *gorm.DB, id, code string) error {
	return finalize(ctx, db, id, domain.StatusInFlight, map[string]any{
		"status":          domain.StatusFailedPermanent,
		"last_error_code": code,
		"updated_at":      time.Now().UTC(),
	})
}

// Cancel withdraws a task that has not yet reached a worker. In-flight and
// terminal tasks are left alone; cancelling them returns ErrStaleTransition.
func Cancel(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Where("id = ? AND status IN ?", id, claimable).
		Updates(map[string]any{
			"status":     domain.StatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return staleOrMissing(ctx, db, id)
	}
	return nil
}

// finalize writes a guarded status transition out of `from`.
func finalize(ctx context.Context, db *gorm.DB, id string, from domain.TaskStatus, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return staleOrMissing(ctx, db, id)
	}
	return nil
}

func staleOrMissing(ctx context.Context, db *gorm.DB, id string) error {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.DeliveryTask{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStaleTransition
}

// BatchSummary aggregates per-recipient outcomes for a batch. It is computed
// on read; no batch-level status row exists to drift out of sync.
type BatchSummary struct {
	BatchID   string `json:"batch_id"`
	Total     int64  `json:"total"`
	Pending   int64  `json:"pending"`
	InFlight  int64  `json:"in_flight"`
	Delivered int64  `json:"delivered"`
	Retryable int64  `json:"failed_retryable"`
	Permanent int64  `json:"failed_permanent"`
	Cancelled int64  `json:"cancelled"`
}

// Complete reports whether every task in the batch has reached a terminal
// state.
func (s BatchSummary) Complete() bool {
	return s.Total > 0 && s.Delivered+s.Permanent+s.Cancelled == s.Total
}

// BatchStatus aggregates the batch's task statuses. Returns ErrNotFound for
// an unknown batch ID.
func BatchStatus(ctx context.Context, db *gorm.DB, batchID string) (BatchSummary, error) {
	rows := []struct {
		Status domain.TaskStatus
		N      int64
	}{}
	err := db.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Select("status, COUNT(*) AS n").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return BatchSummary{}, err
	}
	if len(rows) == 0 {
		return BatchSummary{}, ErrNotFound
	}

	s := BatchSummary{BatchID: batchID}
	for _, r := range rows {
		s.Total += r.N
		switch r.Status {
		case domain.StatusPending:
			s.Pending = r.N
		case domain.StatusInFlight:
			s.InFlight = r.N
		case domain.StatusDelivered:
			s.Delivered = r.N
		case domain.StatusFailedRetryable:
			s.Retryable = r.N
		case domain.StatusFailedPermanent:
			s.Permanent = r.N
		case domain.StatusCancelled:
			s.Cancelled = r.N
		}
	}
	return s, nil
}

// GiveawaySummary counts delivery outcomes across every task tied to a
// giveaway, regardless of batch.
type GiveawaySummary struct {
	GiveawayID  int64 `json:"giveaway_id"`
	Total       int64 `json:"total"`
	Delivered   int64 `json:"delivered"`
	Failed      int64 `json:"failed"`
	Outstanding int64 `json:"outstanding"`
}

// DeliveryStatusByGiveaway aggregates outcomes for all tasks of a giveaway.
func DeliveryStatusByGiveaway(ctx context.Context, db *gorm.DB, giveawayID int64) (GiveawaySummary, error) {
	rows := []struct {
		Status domain.TaskStatus
		N      int64
	}{}
	err := db.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Select("status, COUNT(*) AS n").
		Where("giveaway_id = ?", giveawayID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return GiveawaySummary{}, err
	}
	if len(rows) == 0 {
		return GiveawaySummary{}, ErrNotFound
	}

	s := GiveawaySummary{GiveawayID: giveawayID}
	for _, r := range rows {
		s.Total += r.N
		switch r.Status {
		case domain.StatusDelivered:
			s.Delivered += r.N
		case domain.StatusFailedPermanent, domain.StatusCancelled:
			s.Failed += r.N
		default:
			s.Outstanding += r.N
		}
	}
	return s, nil
}

// FailedRecipient is one permanently failed delivery: who could not be
// reached and why the last attempt failed, for operator follow-up.
type FailedRecipient struct {
	RecipientID   int64  `json:"recipient_id"`
	LastErrorCode string `json:"last_error_code"`
}

// FailedRecipientsByGiveaway lists the giveaway's tasks that ended in
// failed_permanent, with their last error code.
func FailedRecipientsByGiveaway(ctx context.Context, db *gorm.DB, giveawayID int64) ([]FailedRecipient, error) {
	var out []FailedRecipient
	err := db.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Select("recipient_id, COALESCE(last_error_code, '') AS last_error_code").
		Where("giveaway_id = ? AND status = ?", giveawayID, domain.StatusFailedPermanent).
		Order("recipient_id ASC").
		Scan(&out).Error
	return out, err
}

// FailedRecipientsByBatch is FailedRecipientsByGiveaway scoped to one batch.
func FailedRecipientsByBatch(ctx context.Context, db *gorm.DB, batchID string) ([]FailedRecipient, error) {
	var out []FailedRecipient
	err := db.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Select("recipient_id, COALESCE(last_error_code, '') AS last_error_code").
		Where("batch_id = ? AND status = ?", batchID, domain.StatusFailedPermanent).
		Order("recipient_id ASC").
		Scan(&out).Error
	return out, err
}
