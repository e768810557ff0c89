package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageRef identifies a message across chats. Its string form is what the
// store keeps in message_ref columns.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

func (r MessageRef) String() string {
	return strconv.FormatInt(r.ChatID, 10) + ":" + strconv.Itoa(r.MessageID)
}

// ParseMessageRef is the inverse of MessageRef.String.
func ParseMessageRef(s string) (MessageRef, error) {
	chat, msg, ok := strings.Cut(s, ":")
	if !ok {
		return MessageRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return MessageRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	msgID, err := strconv.Atoi(msg)
	if err != nil || msgID <= 0 {
		return MessageRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	return MessageRef{ChatID: chatID, MessageID: msgID}, nil
}
