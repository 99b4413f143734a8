package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
)

// CreateInteraction opens an interaction row for a routed update. One row
// exists per processed update; the update_id unique index backstops the
// in-memory dedup window across restarts.
func CreateInteraction(ctx context.Context, db *gorm.DB, rec *domain.InteractionRecord) error {
	return db.WithContext(ctx).Create(rec).Error
}

// CloseInteraction stamps the final outcome on an interaction. handlerErr is
// stored only for failed outcomes.
func CloseInteraction(ctx context.Context, db *gorm.DB, id uint, outcome domain.InteractionOutcome, handlerErr string) error {
	fields := map[string]any{
		"outcome":      outcome,
		"processed_at": time.Now().UTC(),
	}
	if handlerErr != "" {
		fields["handler_error"] = handlerErr
	}
	res := db.WithContext(ctx).
		Model(&domain.InteractionRecord{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InteractionByUpdateID fetches the interaction for a given platform update.
func InteractionByUpdateID(ctx context.Context, db *gorm.DB, updateID int64) (*domain.InteractionRecord, error) {
	var rec domain.InteractionRecord
	if err := db.WithContext(ctx).First(&rec, "update_id = ?", updateID).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// RecordWebhook appends one row to the webhook processing log. The log keeps
// every receipt, duplicates included, so routing decisions stay auditable.
func RecordWebhook(ctx context.Context, db *gorm.DB, rec *domain.WebhookProcessingRecord) error {
	return db.WithContext(ctx).Create(rec).Error
}

// WebhookReceipts returns the processing log rows for an update, oldest
// first. Duplicate deliveries show up as multiple rows.
func WebhookReceipts(ctx context.Context, db *gorm.DB, updateID int64) ([]domain.WebhookProcessingRecord, error) {
	var rows []domain.WebhookProcessingRecord
	err := db.WithContext(ctx).
		Where("update_id = ?", updateID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
