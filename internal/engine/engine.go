// Package engine implements the outbound delivery engine: a bounded worker
// pool that drains the durable task queue, sends through the platform
// adapter under a global rate ceiling, and records per-recipient outcomes.
//
// Retry policy lives here, not in the adapter: failures come back already
// classified and the engine decides between rescheduling with escalating
// backoff and finalizing the task.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/azatarm-prog/telegive-bot-service/internal/config"
	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
	"github.com/azatarm-prog/telegive-bot-service/internal/repo"
	"github.com/azatarm-prog/telegive-bot-service/internal/telegram"
)

// Sender is the adapter surface the engine sends through.
type Sender interface {
	Send(ctx context.Context, recipientID int64, content domain.MessageContent) (telegram.SendResult, error)
}

// Engine owns the delivery worker pool.
type Engine struct {
	db      *gorm.DB
	sender  Sender
	cfg     config.DeliveryConfig
	limiter *rate.Limiter
	now     func() time.Time

	// OnDelivered, when set, runs after a task is marked delivered. Used to
	// report announcement message IDs back to the giveaway service. Must not
	// block; errors are the callback's own problem.
	OnDelivered func(task *domain.DeliveryTask, messageID int64)

	wg sync.WaitGroup
}

// New builds an Engine. Start must be called before tasks are drained;
// enqueue methods work either way.
func New(db *gorm.DB, sender Sender, cfg config.DeliveryConfig) *Engine {
	return &Engine{
		db:      db,
		sender:  sender,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		now:     time.Now,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled; Wait
// blocks until they have.
func (e *Engine) Start(ctx context.Context) {
	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
	log.Info().Int("workers", e.cfg.Workers).Float64("send_rate", e.cfg.SendRate).Msg("delivery engine started")
}

// Wait blocks until every worker has exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// worker claims due tasks until the context ends. All workers share one
// queue, so an idle worker picks up whatever is due next regardless of
// which batch it belongs to.
func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := repo.ClaimDue(ctx, e.db, e.now().UTC())
		switch {
		case errors.Is(err, repo.ErrNoDueTask):
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.PollInterval):
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("claim failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.PollInterval):
			}
			continue
		}

		e.attempt(ctx, task)
	}
}

// attempt sends one claimed task and writes its outcome.
func (e *Engine) attempt(ctx context.Context, task *domain.DeliveryTask) {
	queueInFlight.Inc()
	defer queueInFlight.Dec()

	if err := e.limiter.Wait(ctx); err != nil {
		// Shutdown while queued for a send slot: put the task back
		// without burning the attempt's backoff slot.
		e.reschedule(task, 0)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	start := e.now()
	res, err := e.sender.Send(sendCtx, task.RecipientID, domain.MessageContent{
		Text:     task.Text,
		PhotoURL: task.PhotoURL,
		Keyboard: domain.DecodeKeyboard(task.Keyboard),
	})
	cancel()
	sendLat.Observe(e.now().Sub(start).Seconds())

	if err == nil {
		e.finishDelivered(task, res)
		return
	}

	var sendErr *telegram.SendError
	if !errors.As(err, &sendErr) {
		sendErr = &telegram.SendError{Code: telegram.CodeUnknown}
	}
	e.finishFailed(task, sendErr)
}

func (e *Engine) finishDelivered(task *domain.DeliveryTask, res telegram.SendResult) {
	if err := repo.MarkDelivered(context.Background(), e.db, task.ID, res.MessageID, res.SentAt); err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("mark delivered failed")
		return
	}
	attemptOutcomes.WithLabelValues("delivered", "").Inc()
	log.Info().
		Str("task_id", task.ID).
		Int64("recipient_id", task.RecipientID).
		Int("attempt", task.AttemptCount).
		Msg("delivered")
	if e.OnDelivered != nil {
		e.OnDelivered(task, res.MessageID)
	}
}

// finishFailed applies the retry policy to a classified failure.
func (e *Engine) finishFailed(task *domain.DeliveryTask, sendErr *telegram.SendError) {
	code := string(sendErr.Code)

	retryable := sendErr.Retryable()
	if sendErr.Code == telegram.CodeUnknown && task.AttemptCount >= 2 {
		// Unclassified failures get exactly one retry.
		retryable = false
	}
	if task.AttemptCount >= task.MaxAttempts {
		retryable = false
	}

	if !retryable {
		if err := repo.MarkPermanent(context.Background(), e.db, task.ID, code); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("mark permanent failed")
			return
		}
		attemptOutcomes.WithLabelValues("permanent", code).Inc()
		log.Warn().
			Str("task_id", task.ID).
			Int64("recipient_id", task.RecipientID).
			Str("code", code).
			Int("attempt", task.AttemptCount).
			Msg("delivery failed permanently")
		return
	}

	delay := backoffDelay(e.cfg.Backoff, task.AttemptCount, sendErr.RetryAfter)
	nextAt := e.now().UTC().Add(delay)
	if err := repo.MarkRetryable(context.Background(), e.db, task.ID, code, nextAt); err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("mark retryable failed")
		return
	}
	attemptOutcomes.WithLabelValues("retryable", code).Inc()
	log.Info().
		Str("task_id", task.ID).
		Int64("recipient_id", task.RecipientID).
		Str("code", code).
		Int("attempt", task.AttemptCount).
		Dur("retry_in", delay).
		Msg("delivery rescheduled")
}

// reschedule returns an interrupted task to the queue as immediately due.
func (e *Engine) reschedule(task *domain.DeliveryTask, delay time.Duration) {
	nextAt := e.now().UTC().Add(delay)
	code := ""
	if task.LastErrorCode != nil {
		code = *task.LastErrorCode
	}
	if err := repo.MarkRetryable(context.Background(), e.db, task.ID, code, nextAt); err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("reschedule failed")
	}
}

// SingleRequest enqueues one message to one recipient.
type SingleRequest struct {
	RecipientID int64
	GiveawayID  *int64
	MessageType string
	Content     domain.MessageContent
}

// EnqueueMessage accepts a single outbound message and returns its task.
func (e *Engine) EnqueueMessage(ctx context.Context, req SingleRequest) (*domain.DeliveryTask, error) {
	if req.MessageType == "" {
		req.MessageType = domain.MessageSingle
	}
	task := e.newTask(req.RecipientID, req.GiveawayID, nil, req.MessageType, req.Content, e.now().UTC())
	if err := repo.CreateTask(ctx, e.db, task); err != nil {
		return nil, fmt.Errorf("engine: enqueue: %w", err)
	}
	taskEnqueued.WithLabelValues(req.MessageType).Inc()
	return task, nil
}

// BatchRecipient is one addressee of a bulk send with its personalized text.
// MessageType, when set, overrides the batch-level type so winner and loser
// notifications can share one batch.
type BatchRecipient struct {
	RecipientID int64
	Text        string
	MessageType string
}

// BatchRequest enqueues one message per recipient under a shared batch ID.
type BatchRequest struct {
	GiveawayID  *int64
	MessageType string
	Recipients  []BatchRecipient
	Keyboard    domain.InlineKeyboard
}

// EnqueueBatch fans a bulk request out into per-recipient tasks. Chunks of
// ChunkSize recipients are staggered ChunkPause apart via their due times,
// so pacing survives restarts instead of living in a sleeping goroutine.
func (e *Engine) EnqueueBatch(ctx context.Context, req BatchRequest) (string, int, error) {
	if len(req.Recipients) == 0 {
		return "", 0, errors.New("engine: empty batch")
	}
	if req.MessageType == "" {
		req.MessageType = domain.MessageSingle
	}

	batchID := uuid.NewString()
	now := e.now().UTC()
	tasks := make([]*domain.DeliveryTask, 0, len(req.Recipients))
	for i, r := range req.Recipients {
		chunk := i / e.cfg.ChunkSize
		due := now.Add(time.Duration(chunk) * e.cfg.ChunkPause)
		mt := r.MessageType
		if mt == "" {
			mt = req.MessageType
		}
		task := e.newTask(r.RecipientID, req.GiveawayID, &batchID, mt, domain.MessageContent{
			Text:     r.Text,
			Keyboard: req.Keyboard,
		}, due)
		tasks = append(tasks, task)
	}

	if err := repo.CreateTasks(ctx, e.db, tasks); err != nil {
		return "", 0, fmt.Errorf("engine: enqueue batch: %w", err)
	}
	for _, t := range tasks {
		taskEnqueued.WithLabelValues(t.MessageType).Inc()
	}
	log.Info().
		Str("batch_id", batchID).
		Int("recipients", len(tasks)).
		Str("message_type", req.MessageType).
		Msg("batch enqueued")
	return batchID, len(tasks), nil
}

func (e *Engine) newTask(recipientID int64, giveawayID *int64, batchID *string, messageType string, content domain.MessageContent, due time.Time) *domain.DeliveryTask {
	return &domain.DeliveryTask{
		ID:            uuid.NewString(),
		BatchID:       batchID,
		GiveawayID:    giveawayID,
		RecipientID:   recipientID,
		MessageType:   messageType,
		Text:          content.Text,
		PhotoURL:      content.PhotoURL,
		Keyboard:      content.Keyboard.Encode(),
		MaxAttempts:   e.cfg.MaxAttempts,
		Status:        domain.StatusPending,
		NextAttemptAt: &due,
	}
}
