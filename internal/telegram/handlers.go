package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/hstefan/fotc/internal/domain"
	"github.com/hstefan/fotc/internal/gateway"
	"github.com/hstefan/fotc/internal/store"
)

func (r *Router) handleGreet(ctx context.Context, req *Request) error {
	r.reply(ctx, req.Event, fmt.Sprintf(greetFmt, req.FirstName))
	return nil
}

// handleMe reposts "/me text" as a bold line and removes the command.
func (r *Router) handleMe(ctx context.Context, req *Request) error {
	arg := strings.TrimSpace(req.Cmd.Rest())
	if arg == "" {
		r.reply(ctx, req.Event, meMissingArgs)
		return nil
	}
	r.send(ctx, gateway.Text{
		ChatID: req.ChatID,
		Body:   "<b>" + html.EscapeString(req.FirstName+" "+arg) + "</b>",
		HTML:   true,
	})
	if err := r.gw.DeleteMessage(ctx, req.ChatID, req.MessageID); err != nil {
		// Missing admin rights or a private chat.
		r.log.Info("unable to delete /me message", zap.Int64("chat", req.ChatID), zap.Error(err))
	}
	return nil
}

func (r *Router) handleRemindMe(ctx context.Context, req *Request) error {
	if req.ReplyTo == nil {
		r.reply(ctx, req.Event, remindNeedsReply)
		return nil
	}
	expr := req.Cmd.Rest()
	if expr == "" {
		r.reply(ctx, req.Event, remindUsage)
		return nil
	}

	now := r.now().UTC()
	at, err := domain.ParseWhen(expr, now, req.Presence.User.Location())
	if err != nil {
		r.reply(ctx, req.Event, remindBadDate)
		return nil
	}
	if !at.After(now) {
		r.reply(ctx, req.Event, remindNotInFuture)
		return nil
	}

	rem, err := req.Repo.CreateReminder(req.Presence.Membership, req.Ref(), at)
	if err != nil {
		return err
	}
	r.log.Info("reminder created",
		zap.Int64("reminder", rem.ID),
		zap.Int64("chat", req.ChatID),
		zap.Time("at", at),
	)
	r.reply(ctx, req.Event, fmt.Sprintf(remindCreatedFmt, domain.FormatUTC(at)))
	return nil
}

func (r *Router) handleSetTZ(ctx context.Context, req *Request) error {
	if len(req.Cmd.Args) == 0 {
		r.reply(ctx, req.Event, tzMissingArgs)
		return nil
	}
	tz, err := domain.ValidateTZ(req.Cmd.Rest())
	if err != nil {
		r.reply(ctx, req.Event, tzInvalid)
		return nil
	}
	if err := req.Repo.SetUserTimezone(req.Presence.User, tz); err != nil {
		return err
	}
	r.log.Info("timezone updated", zap.Int64("user", req.UserID), zap.String("tz", tz))
	r.reply(ctx, req.Event, fmt.Sprintf(tzUpdatedFmt, tz))
	return nil
}

// handleQuote saves the replied-to message as a quote of its author.
func (r *Router) handleQuote(ctx context.Context, req *Request) error {
	if req.ReplyTo == nil {
		r.reply(ctx, req.Event, quoteNeedsReply)
		return nil
	}
	if req.ReplyTo.UserID == 0 {
		r.reply(ctx, req.Event, quoteUnknownUser)
		return nil
	}

	author, err := req.Repo.EnsureUser(req.ReplyTo.UserID)
	if err != nil {
		return err
	}
	m, err := req.Repo.RecordMembership(req.Presence.Group, author)
	if err != nil {
		return err
	}
	if _, err := req.Repo.CreateQuote(m, req.Ref()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return rollbackWith(quoteDuplicate, err)
		}
		return err
	}
	r.reply(ctx, req.Event, quoteSaved)
	return nil
}

// handleUnquote deletes a quote when the sender is the quoted user.
func (r *Router) handleUnquote(ctx context.Context, req *Request) error {
	if req.ReplyTo == nil {
		r.reply(ctx, req.Event, unquoteNeedsReply)
		return nil
	}
	q, err := req.Repo.FindQuoteByRef(req.Ref())
	if errors.Is(err, store.ErrNotFound) {
		r.reply(ctx, req.Event, unquoteNotFound)
		return nil
	}
	if err != nil {
		return err
	}
	m, err := req.Repo.FindMembershipByID(q.MembershipID)
	if err != nil {
		return err
	}
	if m.UserID != req.UserID {
		r.reply(ctx, req.Event, unquoteNotOwner)
		return nil
	}
	if err := req.Repo.DeleteQuote(q); err != nil {
		return err
	}
	r.reply(ctx, req.Event, unquoteDone)
	return nil
}

func (r *Router) handleQuotes(ctx context.Context, req *Request) error {
	quotes, err := req.Repo.GetUserQuotes(req.Presence.Membership)
	if err != nil {
		return err
	}
	r.reply(ctx, req.Event, fmt.Sprintf(quotesCountFmt, len(quotes)))
	return nil
}

// handleAll mentions everyone ever seen in the chat.
func (r *Router) handleAll(ctx context.Context, req *Request) error {
	users, err := req.Repo.ListGroupMembers(req.Presence.Group)
	if err != nil {
		return err
	}
	mentions := make([]string, 0, len(users))
	for _, u := range users {
		member, err := r.gw.ResolveMember(ctx, req.ChatID, u.ID)
		if err != nil {
			r.log.Warn("resolve member failed", zap.Int64("user", u.ID), zap.Error(err))
			member = gateway.Member{UserID: u.ID}
		}
		mentions = append(mentions, gateway.Mention(member))
	}
	if len(mentions) == 0 {
		r.reply(ctx, req.Event, allEmpty)
		return nil
	}
	r.send(ctx, gateway.Text{
		ChatID:  req.ChatID,
		Body:    strings.Join(mentions, " "),
		ReplyTo: req.MessageID,
		HTML:    true,
	})
	return nil
}
