// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/hstefan/fotc/internal/gateway"
)

type Forward struct {
	FromChatID int64
	ToChatID   int64
	MessageID  int
}

type Delete struct {
	ChatID    int64
	MessageID int
}

// Recorder records every call. Err* fields, when set, are returned by the
// matching method after the call is recorded.
type Recorder struct {
	mu sync.Mutex

	Texts    []gateway.Text
	Forwards []Forward
	Deletes  []Delete
	Members  map[int64]string

	ErrSend    error
	ErrForward error
	ErrDelete  error
	ErrResolve error

	nextID int
}

func New() *Recorder {
	return &Recorder{Members: map[int64]string{}}
}

func (r *Recorder) SendText(_ context.Context, msg gateway.Text) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Texts = append(r.Texts, msg)
	if r.ErrSend != nil {
		return 0, r.ErrSend
	}
	r.nextID++
	return r.nextID, nil
}

func (r *Recorder) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deletes = append(r.Deletes, Delete{ChatID: chatID, MessageID: messageID})
	return r.ErrDelete
}

func (r *Recorder) ForwardMessage(_ context.Context, from, to int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Forwards = append(r.Forwards, Forward{FromChatID: from, ToChatID: to, MessageID: messageID})
	return r.ErrForward
}

func (r *Recorder) ResolveMember(_ context.Context, _, userID int64) (gateway.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ErrResolve != nil {
		return gateway.Member{}, r.ErrResolve
	}
	return gateway.Member{UserID: userID, DisplayName: r.Members[userID]}, nil
}

// SentTexts returns a snapshot of the recorded texts.
func (r *Recorder) SentTexts() []gateway.Text {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gateway.Text(nil), r.Texts...)
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Texts, r.Forwards, r.Deletes = nil, nil, nil
}
