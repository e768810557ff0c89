package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/hstefan/fotc/internal/gateway"
)

// DefaultSendRate keeps well under Telegram's global limit of 30 msg/s.
const DefaultSendRate = 25

// botAPI is the part of *tgbotapi.BotAPI the gateway calls.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(c tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Bot implements gateway.Gateway on top of the Telegram Bot API. Every
// outbound call waits on a shared rate limiter.
type Bot struct {
	api     botAPI
	limiter *rate.Limiter
}

var _ gateway.Gateway = (*Bot)(nil)

// NewBot wraps api. perSecond <= 0 uses DefaultSendRate.
func NewBot(api *tgbotapi.BotAPI, perSecond int) *Bot {
	return newBot(api, perSecond)
}

func newBot(api botAPI, perSecond int) *Bot {
	if perSecond <= 0 {
		perSecond = DefaultSendRate
	}
	return &Bot{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (b *Bot) SendText(ctx context.Context, msg gateway.Text) (int, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Body)
	switch {
	case msg.HTML:
		cfg.ParseMode = tgbotapi.ModeHTML
	case msg.Markdown:
		cfg.ParseMode = tgbotapi.ModeMarkdown
	}
	if msg.ReplyTo != 0 {
		cfg.ReplyToMessageID = msg.ReplyTo
		// The replied-to message may be gone by the time a reminder fires.
		cfg.AllowSendingWithoutReply = true
	}
	sent, err := b.api.Send(cfg)
	if err != nil {
		return 0, fmt.Errorf("send to chat %d: %w", msg.ChatID, err)
	}
	return sent.MessageID, nil
}

func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

func (b *Bot) ForwardMessage(ctx context.Context, fromChatID, toChatID int64, messageID int) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.Send(tgbotapi.NewForward(toChatID, fromChatID, messageID)); err != nil {
		return fmt.Errorf("forward %d from %d to %d: %w", messageID, fromChatID, toChatID, err)
	}
	return nil
}

func (b *Bot) ResolveMember(ctx context.Context, chatID, userID int64) (gateway.Member, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return gateway.Member{}, err
	}
	cm, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return gateway.Member{}, fmt.Errorf("get member %d of chat %d: %w", userID, chatID, err)
	}
	return gateway.Member{UserID: userID, DisplayName: displayName(cm.User)}, nil
}

// displayName prefers the full name and falls back to the username.
func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
