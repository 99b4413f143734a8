package telegram

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
)

// Membership is the coarse channel-membership verdict used by the
// subscription gate.
type Membership string

const (
	Member    Membership = "member"
	NotMember Membership = "not_member"
	// MembershipUnknown means the lookup itself failed; callers treat it as
	// "cannot verify" rather than a refusal.
	MembershipUnknown Membership = "unknown"
)

// SendResult describes a successful outbound delivery.
type SendResult struct {
	MessageID int64
	SentAt    time.Time
}

// api is the subset of the bot client the adapter uses; tests substitute a
// fake.
type api interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
	GetChat(ctx context.Context, params *bot.GetChatParams) (*models.ChatFullInfo, error)
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Client adapts go-telegram/bot to the gateway's needs and classifies its
// errors through a ClassificationTable.
type Client struct {
	api   api
	table ClassificationTable
}

// New builds a Client for the given bot token. Construction performs no
// network I/O; a bad token surfaces on the first call instead.
func New(token string) (*Client, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, err
	}
	return &Client{api: b, table: DefaultClassificationTable()}, nil
}

// WithTable replaces the error classification table. Intended for
// deployments that observe descriptions the default table misses.
func (c *Client) WithTable(t ClassificationTable) *Client {
	c.table = t
	return c
}

// Send delivers content to recipientID. Photo content goes out as a photo
// with the text as caption; plain content as an HTML-parsed message. The
// returned error, when non-nil, is always a *SendError.
func (c *Client) Send(ctx context.Context, recipientID int64, content domain.MessageContent) (SendResult, error) {
	markup := replyMarkup(content.Keyboard)

	var (
		msg *models.Message
		err error
	)
	if content.PhotoURL != "" {
		msg, err = c.api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:      recipientID,
			Photo:       &models.InputFileString{Data: content.PhotoURL},
			Caption:     content.Text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: markup,
		})
	} else {
		msg, err = c.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      recipientID,
			Text:        content.Text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: markup,
		})
	}
	if err != nil {
		return SendResult{}, c.table.classify(err)
	}
	return SendResult{MessageID: int64(msg.ID), SentAt: time.Now().UTC()}, nil
}

// GetMembership reports whether userID belongs to channelID. Lookup failures
// map to MembershipUnknown with the classified error attached.
func (c *Client) GetMembership(ctx context.Context, channelID, userID int64) (Membership, error) {
	cm, err := c.api.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: channelID,
		UserID: userID,
	})
	if err != nil {
		return MembershipUnknown, c.table.classify(err)
	}
	switch cm.Type {
	case models.ChatMemberTypeOwner,
		models.ChatMemberTypeAdministrator,
		models.ChatMemberTypeMember,
		models.ChatMemberTypeRestricted:
		return Member, nil
	}
	return NotMember, nil
}

// UserInfo is the platform's view of a user, resolved through their
// private chat.
type UserInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// GetUserInfo resolves a user's profile fields. The platform only exposes
// them through the private chat of the same ID, which exists once the user
// has messaged the bot.
func (c *Client) GetUserInfo(ctx context.Context, userID int64) (UserInfo, error) {
	chat, err := c.api.GetChat(ctx, &bot.GetChatParams{ChatID: userID})
	if err != nil {
		return UserInfo{}, c.table.classify(err)
	}
	return UserInfo{
		ID:        chat.ID,
		Username:  chat.Username,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}, nil
}

// SetWebhook points the platform at url for update delivery.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	if _, err := c.api.SetWebhook(ctx, &bot.SetWebhookParams{URL: url}); err != nil {
		return c.table.classify(err)
	}
	return nil
}

// DeleteWebhook tears down the registered webhook, optionally discarding
// updates queued on the platform side.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	if _, err := c.api.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: dropPending}); err != nil {
		return c.table.classify(err)
	}
	return nil
}

// AnswerCallback acknowledges a callback query so the client's loading
// spinner clears. Failures are non-fatal for the caller but still classified.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		return c.table.classify(err)
	}
	return nil
}

// replyMarkup converts a stored keyboard into platform markup. Empty
// keyboards yield nil so no markup field is sent at all.
func replyMarkup(kb domain.InlineKeyboard) models.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		btns := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, models.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.CallbackData,
				URL:          b.URL,
			})
		}
		rows = append(rows, btns)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
