package handlers

import (
	"context"

	"gorm.io/gorm"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
	"github.com/azatarm-prog/telegive-bot-service/internal/engine"
	"github.com/azatarm-prog/telegive-bot-service/internal/telegram"
)

//
// Service contracts (context-aware)
//

// DeliveryQueue accepts outbound delivery work. Implementations must be safe
// for concurrent use; enqueued work is processed asynchronously.
type DeliveryQueue interface {
	// EnqueueMessage queues one message to one recipient and returns its task.
	EnqueueMessage(ctx context.Context, req engine.SingleRequest) (*domain.DeliveryTask, error)
	// EnqueueBatch fans a bulk request out into per-recipient tasks and
	// returns the batch id and task count.
	EnqueueBatch(ctx context.Context, req engine.BatchRequest) (string, int, error)
}

// UpdateIngester consumes raw inbound webhook bodies. Process never reports
// failure to the caller; malformed and duplicate payloads are logged and
// dropped internally.
type UpdateIngester interface {
	Process(ctx context.Context, raw []byte)
}

// WebhookAdmin manages the platform-side webhook registration.
type WebhookAdmin interface {
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context, dropPending bool) error
}

// Platform exposes the direct bot-API lookups the management surface
// proxies for sibling services.
type Platform interface {
	GetMembership(ctx context.Context, channelID, userID int64) (telegram.Membership, error)
	GetUserInfo(ctx context.Context, userID int64) (telegram.UserInfo, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on abstract contracts to
// keep transport concerns separate from delivery logic; the ledger status
// queries go straight to the repo layer, matching how the rest of the
// service reads the database.
type Handlers struct {
	queue    DeliveryQueue
	ingest   UpdateIngester
	admin    WebhookAdmin
	platform Platform
	db       *gorm.DB
	botToken string
}

// New constructs a Handlers instance bound to the given collaborators.
// botToken is the secret path segment inbound webhook requests must carry.
func New(queue DeliveryQueue, ingest UpdateIngester, admin WebhookAdmin, platform Platform, db *gorm.DB, botToken string) *Handlers {
	return &Handlers{queue: queue, ingest: ingest, admin: admin, platform: platform, db: db, botToken: botToken}
}

// validMessageType reports whether t is one of the known outbound message
// types.
func validMessageType(t string) bool {
	switch t {
	case "", domain.MessageSingle, domain.MessageWinner, domain.MessageLoser, domain.MessageAnnouncement:
		return true
	}
	return false
}
