// Package services implements the behavior behind routed interactions and
// the webhook processing pipeline. Services depend on narrow interfaces
// over the platform adapter and the sibling-service clients so tests can
// substitute fakes.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/azatarm-prog/telegive-bot-service/internal/classify"
	"github.com/azatarm-prog/telegive-bot-service/internal/clients"
	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
	"github.com/azatarm-prog/telegive-bot-service/internal/telegram"
)

// Sender is the platform surface handlers need.
type Sender interface {
	Send(ctx context.Context, recipientID int64, content domain.MessageContent) (telegram.SendResult, error)
	GetMembership(ctx context.Context, channelID, userID int64) (telegram.Membership, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// ParticipantAPI is the slice of the participant service the bot uses.
type ParticipantAPI interface {
	Register(ctx context.Context, giveawayID, userID int64, info clients.UserInfo) (*clients.Registration, error)
	ValidateCaptcha(ctx context.Context, giveawayID, userID int64, answer string) (*clients.CaptchaVerdict, error)
	Winner(ctx context.Context, giveawayID, userID int64) (*clients.WinnerStatus, error)
}

// GiveawayAPI resolves giveaway definitions and result tokens.
type GiveawayAPI interface {
	ByResultToken(ctx context.Context, token string) (*clients.GiveawayInfo, error)
}

// ChannelAPI lists subscription requirements for a giveaway.
type ChannelAPI interface {
	SubscriptionRequirements(ctx context.Context, giveawayID int64) ([]int64, error)
}

// HandlerFunc turns a routed interaction into an optional reply.
type HandlerFunc func(ctx context.Context, r classify.Result) (*Reply, error)

// BotService implements the per-kind interaction handlers.
type BotService struct {
	sender       Sender
	participants ParticipantAPI
	giveaways    GiveawayAPI
	channels     ChannelAPI
	challenges   *classify.ChallengeStore
}

// NewBotService wires the interaction handlers.
func NewBotService(sender Sender, p ParticipantAPI, g GiveawayAPI, ch ChannelAPI, challenges *classify.ChallengeStore) *BotService {
	return &BotService{
		sender:       sender,
		participants: p,
		giveaways:    g,
		channels:     ch,
		challenges:   challenges,
	}
}

// Registry maps interaction kinds to their handlers. The webhook pipeline
// consults it after classification; kinds absent from the map are ignored.
func (s *BotService) Registry() map[domain.InteractionKind]HandlerFunc {
	return map[domain.InteractionKind]HandlerFunc{
		domain.KindCommand:  s.HandleCommand,
		domain.KindCaptcha:  s.HandleCaptchaAnswer,
		domain.KindCallback: s.HandleCallback,
		domain.KindText:     s.HandleText,
	}
}

// HandleCommand serves /start, /help and /cancel. Unknown commands get a
// pointer to /help rather than silence.
func (s *BotService) HandleCommand(ctx context.Context, r classify.Result) (*Reply, error) {
	name, _ := classify.Command(r.Payload)
	switch name {
	case "/start":
		s.challenges.Resolve(r.ChatID)
		return &Reply{Text: welcomeText}, nil
	case "/help":
		return &Reply{Text: helpText}, nil
	case "/cancel":
		if _, pending := s.challenges.Pending(r.ChatID); pending {
			s.challenges.Resolve(r.ChatID)
			return &Reply{Text: cancelledText}, nil
		}
		return &Reply{Text: nothingToCancelText}, nil
	}
	return &Reply{Text: unknownCommandText}, nil
}

// HandleText answers free text outside any flow with usage help. Text that
// looks like a command but matches no registered token gets the
// unknown-command pointer instead; against a pending challenge such text
// never reaches this handler, it is routed as the captcha answer.
func (s *BotService) HandleText(ctx context.Context, r classify.Result) (*Reply, error) {
	if strings.HasPrefix(r.Payload, "/") {
		return &Reply{Text: unknownCommandText}, nil
	}
	return &Reply{Text: fallbackText}, nil
}

// HandleCaptchaAnswer validates a typed answer against the chat's pending
// challenge. A wrong answer keeps the challenge open for another try.
func (s *BotService) HandleCaptchaAnswer(ctx context.Context, r classify.Result) (*Reply, error) {
	ch, ok := s.challenges.Pending(r.ChatID)
	if !ok {
		return &Reply{Text: captchaExpiredText}, nil
	}
	return s.validateCaptcha(ctx, ch.GiveawayID, r.UserID, r.ChatID, r.Payload)
}

// HandleCallback routes button presses. The callback query is acknowledged
// first so the client's spinner clears even if handling fails.
func (s *BotService) HandleCallback(ctx context.Context, r classify.Result) (*Reply, error) {
	if r.CallbackID != "" {
		if err := s.sender.AnswerCallback(ctx, r.CallbackID, ""); err != nil {
			log.Debug().Err(err).Str("callback_id", r.CallbackID).Msg("answer callback failed")
		}
	}

	action, arg, _ := strings.Cut(r.Payload, ":")
	switch action {
	case "participate", "check_subscription":
		giveawayID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, r.Payload)
		}
		return s.participate(ctx, giveawayID, r)
	case "view_results":
		return s.viewResults(ctx, arg, r.UserID)
	case "captcha":
		gid, answer, ok := strings.Cut(arg, ":")
		giveawayID, err := strconv.ParseInt(gid, 10, 64)
		if !ok || err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, r.Payload)
		}
		return s.validateCaptcha(ctx, giveawayID, r.UserID, r.ChatID, answer)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, r.Payload)
}

// participate runs the join flow: subscription gate, then registration,
// then an optional captcha challenge.
func (s *BotService) participate(ctx context.Context, giveawayID int64, r classify.Result) (*Reply, error) {
	missing, err := s.missingSubscriptions(ctx, giveawayID, r.UserID)
	if err != nil {
		return &Reply{Text: serviceTroubleText}, err
	}
	if len(missing) > 0 {
		return subscriptionReply(giveawayID, missing), nil
	}

	reg, err := s.participants.Register(ctx, giveawayID, r.UserID, clients.UserInfo{
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	})
	if err != nil {
		return &Reply{Text: serviceTroubleText}, external(err)
	}
	switch {
	case reg.AlreadyJoined:
		return &Reply{Text: alreadyJoinedText}, nil
	case reg.RequiresCaptcha:
		s.challenges.Issue(r.ChatID, giveawayID, reg.CaptchaQuestion, reg.CaptchaOptions)
		return captchaReply(giveawayID, reg.CaptchaQuestion, reg.CaptchaOptions), nil
	case reg.Success:
		return &Reply{Text: joinedText}, nil
	}
	log.Warn().Int64("giveaway_id", giveawayID).Int64("user_id", r.UserID).Str("error", reg.Error).Msg("registration refused")
	return &Reply{Text: serviceTroubleText}, nil
}

// missingSubscriptions returns required channels the user is not a member
// of. Membership lookups that fail leave the channel in the missing list:
// the gate refuses rather than waves through on uncertainty.
func (s *BotService) missingSubscriptions(ctx context.Context, giveawayID, userID int64) ([]int64, error) {
	required, err := s.channels.SubscriptionRequirements(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, clients.ErrDisabled) {
			// No channel service deployed: no gate.
			return nil, nil
		}
		return nil, external(err)
	}

	var missing []int64
	for _, channelID := range required {
		m, err := s.sender.GetMembership(ctx, channelID, userID)
		if err != nil || m != telegram.Member {
			missing = append(missing, channelID)
		}
	}
	return missing, nil
}

// viewResults resolves a result token and tells the user how they did.
func (s *BotService) viewResults(ctx context.Context, token string, userID int64) (*Reply, error) {
	g, err := s.giveaways.ByResultToken(ctx, token)
	if err != nil {
		var se *clients.StatusError
		if errors.As(err, &se) {
			return &Reply{Text: unknownResultsText}, nil
		}
		return &Reply{Text: serviceTroubleText}, external(err)
	}
	if g.Status != "finished" {
		return &Reply{Text: resultsNotReadyText}, nil
	}

	w, err := s.participants.Winner(ctx, g.ID, userID)
	if err != nil {
		return &Reply{Text: serviceTroubleText}, external(err)
	}
	if w.IsWinner {
		if g.WinnerMessage != "" {
			return &Reply{Text: g.WinnerMessage}, nil
		}
		return &Reply{Text: defaultWinnerText}, nil
	}
	if g.LoserMessage != "" {
		return &Reply{Text: g.LoserMessage}, nil
	}
	return &Reply{Text: defaultLoserText}, nil
}

// validateCaptcha checks an answer via the participant service. The pending
// challenge is resolved only on success so the user can retry.
func (s *BotService) validateCaptcha(ctx context.Context, giveawayID, userID, chatID int64, answer string) (*Reply, error) {
	v, err := s.participants.ValidateCaptcha(ctx, giveawayID, userID, answer)
	if err != nil {
		return &Reply{Text: serviceTroubleText}, external(err)
	}
	if v.Valid {
		s.challenges.Resolve(chatID)
		return &Reply{Text: captchaPassedText}, nil
	}
	return &Reply{Text: captchaWrongText}, nil
}
