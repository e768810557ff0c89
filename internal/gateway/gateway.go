// Package gateway describes the outbound chat-messaging operations the bot
// relies on. The Telegram implementation lives in internal/telegram.
package gateway

import (
	"context"
	"fmt"
	"html"
)

// Member is the part of a chat member the bot displays.
type Member struct {
	UserID      int64
	DisplayName string
}

// Mention renders an HTML mention link for m.
func Mention(m Member) string {
	name := m.DisplayName
	if name == "" {
		name = "friend"
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, m.UserID, html.EscapeString(name))
}

// Text is an outbound text message.
type Text struct {
	ChatID int64
	Body   string
	// ReplyTo quotes a message in the same chat when non-zero.
	ReplyTo int
	// HTML enables HTML parse mode.
	HTML bool
	// Markdown enables Markdown parse mode. Ignored when HTML is set.
	Markdown bool
}

// Gateway is the messaging surface used by handlers and background jobs.
// Implementations report failures; callers decide whether they matter.
type Gateway interface {
	SendText(ctx context.Context, msg Text) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	ForwardMessage(ctx context.Context, fromChatID, toChatID int64, messageID int) error
	ResolveMember(ctx context.Context, chatID, userID int64) (Member, error)
}
