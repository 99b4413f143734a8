package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/azatarm-prog/telegive-bot-service/internal/classify"
	"github.com/azatarm-prog/telegive-bot-service/internal/dispatch"
	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
	"github.com/azatarm-prog/telegive-bot-service/internal/guard"
	"github.com/azatarm-prog/telegive-bot-service/internal/repo"
)

// UpdateProcessor is the webhook ingestion pipeline: parse, dedup, classify,
// record, then hand off to the per-chat dispatcher. Ingestion never fails
// from the transport's point of view; every receipt lands in the webhook
// processing log with its outcome.
type UpdateProcessor struct {
	db         *gorm.DB
	window     *guard.Window
	challenges *classify.ChallengeStore
	handlers   map[domain.InteractionKind]HandlerFunc
	sender     Sender
	dispatcher *dispatch.Dispatcher
	timeout    time.Duration
}

// NewUpdateProcessor wires the pipeline.
func NewUpdateProcessor(
	db *gorm.DB,
	window *guard.Window,
	challenges *classify.ChallengeStore,
	handlers map[domain.InteractionKind]HandlerFunc,
	sender Sender,
	dispatcher *dispatch.Dispatcher,
	timeout time.Duration,
) *UpdateProcessor {
	return &UpdateProcessor{
		db:         db,
		window:     window,
		challenges: challenges,
		handlers:   handlers,
		sender:     sender,
		dispatcher: dispatcher,
		timeout:    timeout,
	}
}

// Process ingests one raw webhook body. Parsing and deduplication run on
// the ingest goroutine; everything that reads per-chat state — routing
// included, since classification consults the challenge store — runs on
// the chat's dispatch queue, after the previous update for that chat has
// been handled. By the time Process returns the update is either logged
// with its terminal receipt or queued behind its chat.
func (p *UpdateProcessor) Process(ctx context.Context, raw []byte) {
	rec := domain.WebhookProcessingRecord{RawSize: len(raw)}

	var u models.Update
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == 0 {
		rec.ParseOutcome = domain.ParseMalformed
		p.logReceipt(ctx, &rec)
		return
	}
	rec.UpdateID = u.ID
	rec.ParseOutcome = domain.ParseOK

	if p.window.Seen(u.ID) {
		rec.RoutingOutcome = domain.RoutingDuplicate
		p.logReceipt(ctx, &rec)
		return
	}

	chatID, ok := classify.ChatKey(&u)
	if !ok {
		rec.RoutingOutcome = domain.RoutingNoHandler
		p.logReceipt(ctx, &rec)
		return
	}

	p.dispatcher.Submit(chatID, func() {
		p.route(&u, rec)
	})
}

// route classifies one update and runs its handler to completion. Runs on
// the chat's dispatch queue, so a challenge issued by the preceding
// update's handler is visible before this update is classified.
func (p *UpdateProcessor) route(u *models.Update, rec domain.WebhookProcessingRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	routed, ok := classify.Classify(u, p.challenges)
	if !ok {
		rec.RoutingOutcome = domain.RoutingNoHandler
		p.logReceipt(ctx, &rec)
		return
	}

	interaction := &domain.InteractionRecord{
		UpdateID:   u.ID,
		ChatID:     routed.ChatID,
		UserID:     routed.UserID,
		Kind:       routed.Kind,
		Payload:    routed.Payload,
		ReceivedAt: time.Now().UTC(),
	}
	if err := repo.CreateInteraction(ctx, p.db, interaction); err != nil {
		// The unique index on update_id caught a duplicate the in-memory
		// window missed (e.g. across a restart).
		rec.RoutingOutcome = domain.RoutingDuplicate
		p.logReceipt(ctx, &rec)
		return
	}

	rec.RoutingOutcome = domain.RoutingRouted
	p.logReceipt(ctx, &rec)

	p.handle(ctx, interaction.ID, routed)
}

// handle runs one routed interaction and closes its ledger row.
func (p *UpdateProcessor) handle(ctx context.Context, interactionID uint, r classify.Result) {
	h, ok := p.handlers[r.Kind]
	if !ok {
		p.close(ctx, interactionID, domain.OutcomeIgnored, "")
		return
	}

	outcome := domain.OutcomeHandled
	var handlerErr string

	reply, err := h(ctx, r)
	if err != nil {
		outcome = domain.OutcomeFailed
		handlerErr = err.Error()
		log.Warn().Err(err).Int64("chat_id", r.ChatID).Str("kind", string(r.Kind)).Msg("interaction handler failed")
	}
	if reply != nil {
		content := domain.MessageContent{Text: reply.Text, Keyboard: reply.Keyboard}
		if _, sendErr := p.sender.Send(ctx, r.ChatID, content); sendErr != nil {
			outcome = domain.OutcomeFailed
			if handlerErr == "" {
				handlerErr = sendErr.Error()
			}
			log.Warn().Err(sendErr).Int64("chat_id", r.ChatID).Msg("interaction reply send failed")
		}
	}

	p.close(ctx, interactionID, outcome, handlerErr)
}

func (p *UpdateProcessor) close(ctx context.Context, id uint, outcome domain.InteractionOutcome, handlerErr string) {
	if err := repo.CloseInteraction(ctx, p.db, id, outcome, handlerErr); err != nil {
		log.Error().Err(err).Uint("interaction_id", id).Msg("close interaction failed")
	}
}

func (p *UpdateProcessor) logReceipt(ctx context.Context, rec *domain.WebhookProcessingRecord) {
	if err := repo.RecordWebhook(ctx, p.db, rec); err != nil {
		log.Error().Err(err).Int64("update_id", rec.UpdateID).Msg("webhook log write failed")
	}
}
