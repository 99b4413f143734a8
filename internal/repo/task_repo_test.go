package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTask(recipient int64) *domain.DeliveryTask {
	now := time.Now().UTC()
	return &domain.DeliveryTask{
		ID:            uuid.NewString(),
		RecipientID:   recipient,
		MessageType:   domain.MessageSingle,
		Text:          "hello",
		MaxAttempts:   3,
		Status:        domain.StatusPending,
		NextAttemptAt: &now,
	}
}

func TestClaimDueIncrementsAttemptCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := newTask(100)
	if err := CreateTask(ctx, db, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := ClaimDue(ctx, db, time.Now().UTC())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got.ID != task.ID {
		t.Fatalf("claimed wrong task: %s", got.ID)
	}
	if got.Status != domain.StatusInFlight {
		t.Fatalf("status = %s, want in_flight", got.Status)
	}
	if got.AttemptCount != 1 {
		t.Fatalf("attempt_count = %d, want 1", got.AttemptCount)
	}

	// In-flight tasks are not claimable again.
	if _, err := ClaimDue(ctx, db, time.Now().UTC()); !errors.Is(err, ErrNoDueTask) {
		t.Fatalf("second claim err = %v, want ErrNoDueTask", err)
	}
}

func TestClaimDueRespectsNextAttemptAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := newTask(100)
	future := time.Now().UTC().Add(time.Hour)
	task.NextAttemptAt = &future
	if err := CreateTask(ctx, db, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ClaimDue(ctx, db, time.Now().UTC()); !errors.Is(err, ErrNoDueTask) {
		t.Fatalf("claim before due err = %v, want ErrNoDueTask", err)
	}
	if _, err := ClaimDue(ctx, db, future.Add(time.Second)); err != nil {
		t.Fatalf("claim after due: %v", err)
	}
}

func TestTransientTwiceThenDelivered(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := newTask(100)
	if err := CreateTask(ctx, db, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := ClaimDue(ctx, db, time.Now().UTC())
		if err != nil {
			t.Fatalf("claim %d: %v", i+1, err)
		}
		next := time.Now().UTC().Add(-time.Second) // immediately due again
		if err := MarkRetryable(ctx, db, got.ID, "TRANSIENT_NETWORK_ERROR", next); err != nil {
			t.Fatalf("mark retryable %d: %v", i+1, err)
		}
	}

	got, err := ClaimDue(ctx, db, time.Now().UTC())
	if err != nil {
		t.Fatalf("third claim: %v", err)
	}
	if err := MarkDelivered(ctx, db, got.ID, 555, time.Now().UTC()); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	final, err := GetTask(ctx, db, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != domain.StatusDelivered {
		t.Fatalf("status = %s, want delivered", final.Status)
	}
	if final.AttemptCount != 3 {
		t.Fatalf("attempt_count = %d, want 3", final.AttemptCount)
	}
	if final.TelegramMessageID == nil || *final.TelegramMessageID != 555 {
		t.Fatalf("telegram_message_id = %v, want 555", final.TelegramMessageID)
	}
	if final.LastErrorCode != nil {
		t.Fatalf("last_error_code = %v, want cleared", *final.LastErrorCode)
	}
}

func TestFinalizeRejectsStaleTransition(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := newTask(100)
	if err := CreateTask(ctx, db, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Never claimed: still pending, so delivered may not be written.
	err := MarkDelivered(ctx, db, task.ID, 1, time.Now().UTC())
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("err = %v, want ErrStaleTransition", err)
	}

	err = MarkPermanent(ctx, db, "no-such-id", "UNKNOWN")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelOnlyBeforeFlight(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := newTask(100)
	if err := CreateTask(ctx, db, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Cancel(ctx, db, task.ID); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}

	got, err := GetTask(ctx, db, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	// Cancelled is terminal; a second cancel is stale.
	if err := Cancel(ctx, db, task.ID); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("second cancel err = %v, want ErrStaleTransition", err)
	}
}

func TestBatchStatusConservation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batchID := uuid.NewString()
	var tasks []*domain.DeliveryTask
	for _, rcpt := range []int64{100, 200, 300} {
		task := newTask(rcpt)
		task.BatchID = &batchID
		task.MessageType = domain.MessageWinner
		tasks = append(tasks, task)
	}
	if err := CreateTasks(ctx, db, tasks); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	s, err := BatchStatus(ctx, db, batchID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if s.Total != 3 || s.Pending != 3 {
		t.Fatalf("fresh batch = %+v, want 3 pending", s)
	}
	if s.Complete() {
		t.Fatal("fresh batch reported complete")
	}

	// Recipient 200 blocks the bot; the other two deliver.
	for i := 0; i < 3; i++ {
		got, err := ClaimDue(ctx, db, time.Now().UTC())
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if got.RecipientID == 200 {
			if err := MarkPermanent(ctx, db, got.ID, "RECIPIENT_BLOCKED"); err != nil {
				t.Fatalf("mark permanent: %v", err)
			}
		} else {
			if err := MarkDelivered(ctx, db, got.ID, int64(1000+i), time.Now().UTC()); err != nil {
				t.Fatalf("mark delivered: %v", err)
			}
		}
	}

	s, err = BatchStatus(ctx, db, batchID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if s.Delivered != 2 || s.Permanent != 1 || s.Pending != 0 || s.InFlight != 0 {
		t.Fatalf("final batch = %+v, want 2 delivered 1 permanent", s)
	}
	if sum := s.Pending + s.InFlight + s.Delivered + s.Retryable + s.Permanent + s.Cancelled; sum != s.Total {
		t.Fatalf("status counts sum to %d, total %d", sum, s.Total)
	}
	if !s.Complete() {
		t.Fatal("settled batch not reported complete")
	}

	failed, err := FailedRecipientsByBatch(ctx, db, batchID)
	if err != nil {
		t.Fatalf("failed recipients: %v", err)
	}
	if len(failed) != 1 || failed[0].LastErrorCode != "RECIPIENT_BLOCKED" {
		t.Fatalf("failed recipients = %v, want one RECIPIENT_BLOCKED entry", failed)
	}

	if _, err := BatchStatus(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing batch err = %v, want ErrNotFound", err)
	}
}

func TestGiveawayAggregates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	gid := int64(77)
	for _, rcpt := range []int64{100, 200} {
		task := newTask(rcpt)
		task.GiveawayID = &gid
		if err := CreateTask(ctx, db, task); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		got, err := ClaimDue(ctx, db, time.Now().UTC())
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if got.RecipientID == 200 {
			if err := MarkPermanent(ctx, db, got.ID, "RECIPIENT_BLOCKED"); err != nil {
				t.Fatalf("mark permanent: %v", err)
			}
		} else {
			if err := MarkDelivered(ctx, db, got.ID, 1, time.Now().UTC()); err != nil {
				t.Fatalf("mark delivered: %v", err)
			}
		}
	}

	s, err := DeliveryStatusByGiveaway(ctx, db, gid)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Total != 2 || s.Delivered != 1 || s.Failed != 1 || s.Outstanding != 0 {
		t.Fatalf("summary = %+v", s)
	}

	failed, err := FailedRecipientsByGiveaway(ctx, db, gid)
	if err != nil {
		t.Fatalf("failed recipients: %v", err)
	}
	if len(failed) != 1 || failed[0].RecipientID != 200 {
		t.Fatalf("failed recipients = %v, want recipient 200", failed)
	}
	if failed[0].LastErrorCode != "RECIPIENT_BLOCKED" {
		t.Fatalf("last error code = %q, want RECIPIENT_BLOCKED", failed[0].LastErrorCode)
	}
}
