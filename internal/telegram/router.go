package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hstefan/fotc/internal/domain"
	"github.com/hstefan/fotc/internal/gateway"
	"github.com/hstefan/fotc/internal/presence"
	"github.com/hstefan/fotc/internal/store"
)

// Event is one inbound message, stripped of Telegram types.
type Event struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
	FirstName string
	// ReplyTo is the message this one answers, if any.
	ReplyTo *ReplyTarget
}

// ReplyTarget identifies a replied-to message and its author.
type ReplyTarget struct {
	MessageID int
	// UserID is zero when the author is unknown, e.g. a channel post.
	UserID int64
}

// Ref returns the store reference of the replied-to message.
func (e Event) Ref() string {
	if e.ReplyTo == nil {
		return ""
	}
	return domain.MessageRef{ChatID: e.ChatID, MessageID: e.ReplyTo.MessageID}.String()
}

// Request is what a handler gets: the event, its parsed command and the
// unit of work opened for it.
type Request struct {
	Event
	Cmd      domain.Command
	Repo     *store.Repo
	Presence *presence.Result
}

// HandlerFunc handles one command. A returned error rolls back the whole
// unit of work, including the presence update.
type HandlerFunc func(ctx context.Context, req *Request) error

// Router turns updates into events and dispatches them to handlers.
type Router struct {
	store    *store.Store
	tracker  *presence.Tracker
	gw       gateway.Gateway
	log      *zap.Logger
	now      func() time.Time
	handlers map[string]HandlerFunc
}

// NewRouter creates a router with every command registered.
func NewRouter(st *store.Store, tracker *presence.Tracker, gw gateway.Gateway, log *zap.Logger) *Router {
	r := &Router{
		store:   st,
		tracker: tracker,
		gw:      gw,
		log:     log,
		now:     time.Now,
	}
	r.handlers = map[string]HandlerFunc{
		"greet":    r.handleGreet,
		"me":       r.handleMe,
		"remindme": r.handleRemindMe,
		"settz":    r.handleSetTZ,
		"quote":    r.handleQuote,
		"unquote":  r.handleUnquote,
		"quotes":   r.handleQuotes,
		"all":      r.handleAll,
	}
	return r
}

// HandleUpdate routes a single update. Anything that isn't a message from a
// user is ignored.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	ev := Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		FirstName: msg.From.FirstName,
	}
	if rt := msg.ReplyToMessage; rt != nil {
		ev.ReplyTo = &ReplyTarget{MessageID: rt.MessageID}
		if rt.From != nil {
			ev.ReplyTo.UserID = rt.From.ID
		}
	}
	r.Dispatch(ctx, ev)
}

// Dispatch runs the handler for ev's command inside a transaction. Plain
// messages and unknown commands only record presence.
func (r *Router) Dispatch(ctx context.Context, ev Event) {
	var (
		cmd domain.Command
		h   HandlerFunc
	)
	if strings.HasPrefix(strings.TrimSpace(ev.Text), "/") {
		if parsed, err := domain.ParseCommand(ev.Text); err == nil {
			cmd = parsed
			h = r.handlers[cmd.Name]
		}
	}
	r.withTx(h)(ctx, ev, cmd)
}

// withTx wraps h in a unit of work: one transaction that first records the
// sender's presence and then runs h. A nil h records presence only.
func (r *Router) withTx(h HandlerFunc) func(ctx context.Context, ev Event, cmd domain.Command) {
	return func(ctx context.Context, ev Event, cmd domain.Command) {
		err := r.store.Transaction(ctx, func(repo *store.Repo) error {
			p, err := r.tracker.Touch(ctx, repo, ev.UserID, ev.ChatID)
			if err != nil {
				return err
			}
			if h == nil {
				return nil
			}
			return h(ctx, &Request{Event: ev, Cmd: cmd, Repo: repo, Presence: p})
		})
		if err == nil {
			return
		}

		var re *replyError
		switch {
		case errors.As(err, &re):
			r.log.Info("command rolled back",
				zap.String("command", cmd.Name),
				zap.Int64("chat", ev.ChatID),
				zap.Error(err),
			)
			r.reply(ctx, ev, re.msg)
		default:
			r.log.Error("command failed",
				zap.String("command", cmd.Name),
				zap.Int64("chat", ev.ChatID),
				zap.Int64("user", ev.UserID),
				zap.Error(err),
			)
		}
	}
}

// replyError rolls a unit of work back and tells the sender why.
type replyError struct {
	msg string
	err error
}

func (e *replyError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *replyError) Unwrap() error { return e.err }

func rollbackWith(msg string, err error) error {
	return &replyError{msg: msg, err: err}
}

// reply answers ev in its chat. Gateway failures are logged only.
func (r *Router) reply(ctx context.Context, ev Event, body string) {
	r.send(ctx, gateway.Text{ChatID: ev.ChatID, Body: body, ReplyTo: ev.MessageID})
}

func (r *Router) send(ctx context.Context, msg gateway.Text) {
	if _, err := r.gw.SendText(ctx, msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chat", msg.ChatID), zap.Error(err))
	}
}
