package classify

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
)

// Result is a routed update: where it came from, what kind of interaction
// it is, and the payload its handler needs.
type Result struct {
	Kind       domain.InteractionKind
	ChatID     int64
	UserID     int64
	Payload    string
	CallbackID string // set for callback interactions
	Username   string
	FirstName  string
	LastName   string
}

// ChatKey extracts the dispatch key for an update without consulting any
// per-chat state. Classification reads the challenge store, which the
// previous update's handler for the same chat may still be writing, so
// Classify must run on the chat's dispatch queue; ChatKey is the part of
// routing that is safe on the ingest goroutine. False means no handler
// could claim the update regardless of chat state.
func ChatKey(u *models.Update) (int64, bool) {
	if u.CallbackQuery != nil {
		if u.CallbackQuery.Message.Message != nil {
			return u.CallbackQuery.Message.Message.Chat.ID, true
		}
		return u.CallbackQuery.From.ID, true
	}
	if u.Message != nil && u.Message.From != nil {
		return u.Message.Chat.ID, true
	}
	return 0, false
}

// Classify routes a parsed update. Rules apply in order: callback queries,
// commands, pending-captcha answers, then free text. The second return is
// false when no handler exists for the update (edited messages, channel
// posts, joins), in which case the update is logged and dropped.
func Classify(u *models.Update, challenges *ChallengeStore) (Result, bool) {
	if u.CallbackQuery != nil {
		return classifyCallback(u.CallbackQuery), true
	}
	if u.Message != nil {
		return classifyMessage(u.Message, challenges)
	}
	return Result{}, false
}

func classifyCallback(cb *models.CallbackQuery) Result {
	r := Result{
		Kind:       domain.KindCallback,
		UserID:     cb.From.ID,
		ChatID:     cb.From.ID,
		Payload:    cb.Data,
		CallbackID: cb.ID,
		Username:   cb.From.Username,
		FirstName:  cb.From.FirstName,
		LastName:   cb.From.LastName,
	}
	if cb.Message.Message != nil {
		r.ChatID = cb.Message.Message.Chat.ID
	}
	return r
}

func classifyMessage(m *models.Message, challenges *ChallengeStore) (Result, bool) {
	if m.From == nil {
		return Result{}, false
	}
	r := Result{
		ChatID:    m.Chat.ID,
		UserID:    m.From.ID,
		Payload:   m.Text,
		Username:  m.From.Username,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
	}

	text := strings.TrimSpace(m.Text)
	switch {
	case text == "":
		// Stickers, photos without captions, service messages.
		return Result{}, false
	case strings.HasPrefix(text, "/") && KnownCommand(text):
		r.Kind = domain.KindCommand
		r.Payload = text
	default:
		// A live challenge turns the chat's next text into a captcha
		// answer; an expired one has already been dropped by Pending, so
		// the text falls through to the plain-text handler.
		if _, ok := challenges.Pending(m.Chat.ID); ok {
			r.Kind = domain.KindCaptcha
		} else {
			r.Kind = domain.KindText
		}
		r.Payload = text
	}
	return r, true
}

// knownCommands are the command tokens the bot registers behavior for.
// Text starting with any other "/" token is not a command: against a
// pending challenge it is the captcha answer, otherwise plain text.
var knownCommands = map[string]struct{}{
	"/start":  {},
	"/help":   {},
	"/cancel": {},
}

// KnownCommand reports whether text begins with a registered command token.
func KnownCommand(text string) bool {
	name, _ := Command(text)
	_, ok := knownCommands[name]
	return ok
}

// Command splits a command payload such as "/start abc" into its name and
// argument. The bot-mention suffix ("/start@MyBot") is stripped.
func Command(payload string) (name, arg string) {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return "", ""
	}
	name = fields[0]
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	return name, arg
}
