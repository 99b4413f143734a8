package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
)

func TestInteractionLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := &domain.InteractionRecord{
		UpdateID: 42,
		ChatID:   100,
		UserID:   100,
		Kind:     domain.KindCommand,
		Payload:  "/start",
	}
	if err := CreateInteraction(ctx, db, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := CloseInteraction(ctx, db, rec.ID, domain.OutcomeHandled, ""); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := InteractionByUpdateID(ctx, db, 42)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Outcome != domain.OutcomeHandled {
		t.Fatalf("outcome = %s, want handled", got.Outcome)
	}
	if got.ProcessedAt == nil {
		t.Fatal("processed_at not stamped")
	}
	if got.HandlerError != nil {
		t.Fatalf("handler_error = %v, want nil", *got.HandlerError)
	}

	// One interaction per update: a duplicate insert violates the unique
	// index on update_id.
	dup := &domain.InteractionRecord{UpdateID: 42, ChatID: 100, UserID: 100, Kind: domain.KindCommand}
	if err := CreateInteraction(ctx, db, dup); err == nil {
		t.Fatal("duplicate update_id insert succeeded")
	}
}

func TestCloseInteractionFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := &domain.InteractionRecord{UpdateID: 7, ChatID: 1, UserID: 1, Kind: domain.KindCallback, Payload: "participate:9"}
	if err := CreateInteraction(ctx, db, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := CloseInteraction(ctx, db, rec.ID, domain.OutcomeFailed, "participant service unavailable"); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := InteractionByUpdateID(ctx, db, 7)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Outcome != domain.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", got.Outcome)
	}
	if got.HandlerError == nil || *got.HandlerError != "participant service unavailable" {
		t.Fatalf("handler_error = %v", got.HandlerError)
	}

	if err := CloseInteraction(ctx, db, 9999, domain.OutcomeHandled, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("close missing err = %v, want ErrNotFound", err)
	}
}

func TestWebhookLogKeepsDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &domain.WebhookProcessingRecord{UpdateID: 42, RawSize: 128, ParseOutcome: domain.ParseOK, RoutingOutcome: domain.RoutingRouted}
	second := &domain.WebhookProcessingRecord{UpdateID: 42, RawSize: 128, ParseOutcome: domain.ParseOK, RoutingOutcome: domain.RoutingDuplicate}
	for _, rec := range []*domain.WebhookProcessingRecord{first, second} {
		if err := RecordWebhook(ctx, db, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	rows, err := WebhookReceipts(ctx, db, 42)
	if err != nil {
		t.Fatalf("receipts: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("receipts = %d rows, want 2", len(rows))
	}
	if rows[0].RoutingOutcome != domain.RoutingRouted || rows[1].RoutingOutcome != domain.RoutingDuplicate {
		t.Fatalf("routing outcomes = %s, %s", rows[0].RoutingOutcome, rows[1].RoutingOutcome)
	}
}
