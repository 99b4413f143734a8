// Package domain defines the persistence models for the delivery gateway:
// webhook processing records, bot interaction records, and delivery tasks.
// These types are mapped with GORM and form the ledger that the delivery
// engine and webhook pipeline write to.
package domain

import (
	"time"
)

// InteractionKind classifies an inbound update after routing.
type InteractionKind string

// Interaction kinds produced by the classifier. Updates that match none of
// the routing rules are dropped before an InteractionRecord is created.
const (
	KindCommand  InteractionKind = "command"
	KindCaptcha  InteractionKind = "captcha"
	KindText     InteractionKind = "text"
	KindCallback InteractionKind = "callback"
)

// InteractionOutcome records how handling an interaction ended.
type InteractionOutcome string

const (
	OutcomeHandled InteractionOutcome = "handled"
	OutcomeIgnored InteractionOutcome = "ignored"
	OutcomeFailed  InteractionOutcome = "failed"
)

// TaskStatus is the delivery task state machine state.
//
// Transitions:
//
//	pending → in_flight → {delivered | failed_retryable | failed_permanent}
//	failed_retryable → in_flight (re-attempt, until attempt budget is spent)
//
// delivered, failed_permanent, and cancelled are terminal. cancelled is never
// set by this service; an operator job may inject it, and the state machine
// must accept it without ever transitioning out of it.
type TaskStatus string

const (
	StatusPending         TaskStatus = "pending"
	StatusInFlight        TaskStatus = "in_flight"
	StatusDelivered       TaskStatus = "delivered"
	StatusFailedRetryable TaskStatus = "failed_retryable"
	StatusFailedPermanent TaskStatus = "failed_permanent"
	StatusCancelled       TaskStatus = "cancelled"
)

// Terminal reports whether s admits no further transition.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusFailedPermanent, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits from → to.
// Terminal states are sinks: nothing leaves them, including re-entry with a
// different outcome.
func CanTransition(from, to TaskStatus) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusInFlight || to == StatusCancelled
	case StatusInFlight:
		return to == StatusDelivered || to == StatusFailedRetryable || to == StatusFailedPermanent
	case StatusFailedRetryable:
		return to == StatusInFlight || to == StatusCancelled
	}
	return false
}

// Message type labels for DeliveryTask.MessageType.
const (
	MessageSingle       = "single"
	MessageWinner       = "winner"
	MessageLoser        = "loser"
	MessageAnnouncement = "announcement"
)

// ParseOutcome records whether a raw webhook body decoded into an update.
type ParseOutcome string

const (
	ParseOK        ParseOutcome = "ok"
	ParseMalformed ParseOutcome = "malformed"
)

// RoutingOutcome records what the webhook pipeline did with a parsed update.
type RoutingOutcome string

const (
	RoutingRouted    RoutingOutcome = "routed"
	RoutingNoHandler RoutingOutcome = "no_handler"
	RoutingDuplicate RoutingOutcome = "duplicate"
)

// InteractionRecord is the ledger row for one processed inbound update.
// It is created when the classifier assigns a kind and immutably closed once
// the handler returns; ProcessedAt is never rewritten after it is set.
//
// UpdateID is unique: the idempotency guard rejects duplicates before a
// record is created.
type InteractionRecord struct {
	ID           uint               `json:"id"            gorm:"primaryKey;autoIncrement"`
	UpdateID     int64              `json:"update_id"     gorm:"not null;uniqueIndex"`
	ChatID       int64              `json:"chat_id"       gorm:"not null;index:idx_chat_interactions"`
	UserID       int64              `json:"user_id"       gorm:"not null;index"`
	Kind         InteractionKind    `json:"kind"          gorm:"type:varchar(16);not null"`
	Payload      string             `json:"payload"       gorm:"type:text"`
	Outcome      InteractionOutcome `json:"outcome"       gorm:"type:varchar(16);not null;default:'ignored'"`
	HandlerError *string            `json:"handler_error,omitempty" gorm:"type:varchar(255)"`
	ReceivedAt   time.Time          `json:"received_at"   gorm:"not null"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty"`
}

// TableName returns the database table name for InteractionRecord.
func (InteractionRecord) TableName() string { return "bot_interactions" }

// DeliveryTask is one unit of outbound work: a single send, or one recipient
// within a bulk batch.
//
// Invariants:
//   - AttemptCount never exceeds MaxAttempts.
//   - Status moves only along the transitions accepted by CanTransition.
//   - NextAttemptAt is meaningful only while Status is failed_retryable
//     (pending tasks carry it too, as the earliest dispatch time for paced
//     batch chunks).
type DeliveryTask struct {
	ID          string  `json:"task_id"      gorm:"type:char(36);primaryKey"`
	BatchID     *string `json:"batch_id,omitempty" gorm:"type:char(36);index:idx_batch_tasks"`
	GiveawayID  *int64  `json:"giveaway_id,omitempty" gorm:"index"`
	RecipientID int64   `json:"recipient_id" gorm:"not null;index"`

	// MessageType labels the business intent of the send (winner, loser,
	// single, announcement). Informational only; the engine does not branch
	// on it.
	MessageType string `json:"message_type" gorm:"type:varchar(32);not null;default:'single'"`

	Text     string `json:"text"      gorm:"type:text;not null"`
	PhotoURL string `json:"photo_url,omitempty" gorm:"type:text"`
	// Keyboard is an inline keyboard serialized as JSON, empty when the
	// message carries no reply markup.
	Keyboard string `json:"keyboard,omitempty" gorm:"type:text"`

	AttemptCount int        `json:"attempt_count" gorm:"not null;default:0"`
	MaxAttempts  int        `json:"max_attempts"  gorm:"not null;default:3"`
	Status       TaskStatus `json:"status"        gorm:"type:varchar(20);not null;default:'pending';index:idx_task_due,priority:1"`
	// NextAttemptAt gates eligibility: a sender only claims tasks whose
	// NextAttemptAt is in the past (or nil).
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty" gorm:"index:idx_task_due,priority:2"`

	LastErrorCode     *string `json:"last_error_code,omitempty" gorm:"type:varchar(50)"`
	TelegramMessageID *int64  `json:"telegram_message_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// TableName returns the database table name for DeliveryTask.
func (DeliveryTask) TableName() string { return "delivery_tasks" }

// WebhookProcessingRecord is the raw-ingestion audit row, written once per
// received webhook body and independent of InteractionRecord. It answers
// operational questions (was the payload well-formed, did routing happen)
// and deliberately allows multiple rows per update id: a redelivered update
// produces a second row with RoutingOutcome duplicate.
type WebhookProcessingRecord struct {
	ID             uint           `json:"id"              gorm:"primaryKey;autoIncrement"`
	UpdateID       int64          `json:"update_id"       gorm:"index"`
	RawSize        int            `json:"raw_size"        gorm:"not null"`
	ParseOutcome   ParseOutcome   `json:"parse_outcome"   gorm:"type:varchar(16);not null"`
	RoutingOutcome RoutingOutcome `json:"routing_outcome" gorm:"type:varchar(16)"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName returns the database table name for WebhookProcessingRecord.
func (WebhookProcessingRecord) TableName() string { return "webhook_processing_log" }
