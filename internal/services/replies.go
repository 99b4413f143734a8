package services

import (
	"fmt"
	"strings"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
)

// Reply is what a handler wants sent back to the chat.
type Reply struct {
	Text     string
	Keyboard domain.InlineKeyboard
}

const welcomeText = `🤖 <b>Welcome to Telegive Bot!</b>

I help you participate in giveaways and check results.

<b>How to use:</b>
• Click the PARTICIPATE button on giveaway posts
• I'll guide you through the participation process
• Use VIEW RESULTS button to check if you won

<b>Commands:</b>
/help - Show this help message
/cancel - Cancel current operation

Good luck! 🍀`

const helpText = `🆘 <b>Telegive Bot Help</b>

<b>Participating in Giveaways:</b>
1. Find a giveaway post in a channel
2. Click the 🎁 PARTICIPATE button
3. Follow the instructions I send you
4. Complete any required steps (captcha, subscriptions)

<b>Checking Results:</b>
1. Click the 🏆 VIEW RESULTS button on concluded giveaways
2. I'll tell you if you won or not

<b>Commands:</b>
/start - Show the welcome message
/cancel - Cancel current operation`

const (
	cancelledText       = "Operation cancelled. You can participate in giveaways anytime!"
	nothingToCancelText = "Nothing to cancel right now."
	fallbackText        = "I didn't understand that. Use /help to see what I can do."
	unknownCommandText  = "Unknown command. Use /help to see available commands."
	serviceTroubleText  = "❌ Something went wrong on our side. Please try again later."
	alreadyJoinedText   = "ℹ️ You are already participating in this giveaway! Good luck! 🍀"
	joinedText          = "🎉 <b>Participation Successful!</b>\n\nYou are now participating in the giveaway!\n\nGood luck! 🍀"
	captchaPassedText   = "✅ <b>Captcha completed successfully!</b>\n\n🎉 You are now participating in the giveaway!\n\nGood luck! 🍀"
	captchaWrongText    = "❌ Incorrect answer. Please try again."
	captchaExpiredText  = "❌ Session expired. Please try participating again."
	defaultWinnerText   = "🎊 Congratulations! You are one of our lucky winners!"
	defaultLoserText    = "Thank you for participating! Better luck next time! 🍀"
	resultsNotReadyText = "⏳ Results are not available yet. Check back soon!"
	unknownResultsText  = "❌ Invalid giveaway information."
)

// subscriptionReply lists the channels the user still has to join, with a
// retry button.
func subscriptionReply(giveawayID int64, missing []int64) *Reply {
	var b strings.Builder
	b.WriteString("📢 <b>Subscription Required</b>\n\nTo participate in this giveaway, you must be subscribed to the following channels:\n")
	for _, id := range missing {
		fmt.Fprintf(&b, "• <code>%d</code>\n", id)
	}
	b.WriteString("\nPlease subscribe to all required channels and try again.")
	return &Reply{
		Text: b.String(),
		Keyboard: domain.InlineKeyboard{{
			{Text: "✅ I Joined", CallbackData: fmt.Sprintf("check_subscription:%d", giveawayID)},
		}},
	}
}

// captchaReply asks the challenge question, offering the options as buttons
// alongside free-text input.
func captchaReply(giveawayID int64, question string, options []string) *Reply {
	r := &Reply{
		Text: fmt.Sprintf("🧩 <b>Quick check before you join:</b>\n\n%s\n\nTap an answer or type it below.", question),
	}
	if len(options) > 0 {
		row := make([]domain.KeyboardButton, 0, len(options))
		for _, opt := range options {
			row = append(row, domain.KeyboardButton{
				Text:         opt,
				CallbackData: fmt.Sprintf("captcha:%d:%s", giveawayID, opt),
			})
		}
		r.Keyboard = domain.InlineKeyboard{row}
	}
	return r
}

// AnnouncementKeyboard builds the participate button attached to channel
// giveaway posts.
func AnnouncementKeyboard(giveawayID int64) domain.InlineKeyboard {
	return domain.InlineKeyboard{{
		{Text: "🎁 PARTICIPATE", CallbackData: fmt.Sprintf("participate:%d", giveawayID)},
	}}
}

// ResultsKeyboard builds the view-results button for conclusion posts.
func ResultsKeyboard(resultToken string) domain.InlineKeyboard {
	return domain.InlineKeyboard{{
		{Text: "🏆 VIEW RESULTS", CallbackData: "view_results:" + resultToken},
	}}
}
