package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hstefan/fotc/internal/domain"
	"github.com/hstefan/fotc/internal/gateway"
	"github.com/hstefan/fotc/internal/model"
	"github.com/hstefan/fotc/internal/store"
)

const (
	DefaultInterval    = time.Second
	DefaultBackoff     = 2 * time.Second
	DefaultStopTimeout = 10 * time.Second
)

// Notifier is the slice of the messaging gateway the poller needs.
type Notifier interface {
	SendText(ctx context.Context, msg gateway.Text) (int, error)
	ResolveMember(ctx context.Context, chatID, userID int64) (gateway.Member, error)
}

// Config tunes the poll loop. Zero fields take the defaults.
type Config struct {
	Interval    time.Duration
	Backoff     time.Duration
	StopTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	return c
}

// Poller periodically delivers due reminders. It runs on its own goroutine
// with its own transaction per pass and shares nothing with the update path
// but the store.
//
// Delivery is at-least-once: a pass marks reminders sent in the same
// transaction it commits after all sends, so a crash or failed commit after
// a send redelivers that reminder on the next pass.
type Poller struct {
	store *store.Store
	gw    Notifier
	log   *zap.Logger
	cfg   Config
	now   func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a stopped Poller.
func New(st *store.Store, gw Notifier, log *zap.Logger, cfg Config) *Poller {
	return &Poller{
		store: st,
		gw:    gw,
		log:   log,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

// Start launches the poll loop. It is a no-op while already running. After
// a Stop that timed out, Start first waits for the old loop to finish its
// pass so two loops never run at once.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	prev := p.doneCh
	p.mu.Unlock()

	if prev != nil {
		<-prev
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop(p.stopCh, p.doneCh)
	p.log.Info("poller started", zap.Duration("interval", p.cfg.Interval))
}

// Stop asks the loop to exit and waits for it, up to the stop timeout. The
// current pass is never interrupted; the loop only checks for a stop request
// between passes. Calling Stop on a stopped poller does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	select {
	case <-done:
		p.log.Info("poller stopped")
	case <-time.After(p.cfg.StopTimeout):
		p.log.Error("poller did not stop after timeout", zap.Duration("timeout", p.cfg.StopTimeout))
	}
}

// Running reports whether the loop has been started and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		res := p.runPass(context.Background())
		wait := p.cfg.Interval
		if res.err != nil {
			res.log(p.log)
			wait = p.cfg.Backoff
		} else if res.due > 0 {
			res.log(p.log)
		}

		select {
		case <-stop:
			return
		case <-time.After(wait):
		}
	}
}

type failureKind int

const (
	failureNone failureKind = iota
	// failureStore covers query, lookup and commit errors.
	failureStore
	// failurePanic is a bug; it should never happen.
	failurePanic
)

// passResult summarizes one poll pass.
type passResult struct {
	id        string
	due       int
	delivered int
	deferred  int
	kind      failureKind
	err       error
}

func (r passResult) log(l *zap.Logger) {
	fields := []zap.Field{
		zap.String("pass", r.id),
		zap.Int("due", r.due),
		zap.Int("delivered", r.delivered),
		zap.Int("deferred", r.deferred),
	}
	switch r.kind {
	case failureNone:
		l.Info("reminders delivered", fields...)
	case failureStore:
		l.Error("reminder pass abandoned", append(fields, zap.Error(r.err))...)
	case failurePanic:
		l.Error("reminder pass panicked", append(fields, zap.Error(r.err))...)
	}
}

// runPass delivers every due reminder inside one transaction. A gateway
// failure defers that reminder to a later pass; a store failure abandons the
// pass and rolls back every sent_on written so far.
func (p *Poller) runPass(ctx context.Context) (res passResult) {
	res.id = uuid.NewString()
	defer func() {
		if v := recover(); v != nil {
			res.kind = failurePanic
			res.err = fmt.Errorf("panic: %v\n%s", v, debug.Stack())
		}
	}()

	now := p.now().UTC()
	err := p.store.Transaction(ctx, func(repo *store.Repo) error {
		due, err := repo.QueryDueReminders(now)
		if err != nil {
			return err
		}
		res.due = len(due)
		for i := range due {
			sent, err := p.deliver(ctx, repo, &due[i], now)
			if err != nil {
				return err
			}
			if sent {
				res.delivered++
			} else {
				res.deferred++
			}
		}
		return nil
	})
	if err != nil {
		res.kind = failureStore
		res.err = err
	}
	return res
}

// deliver notifies the reminder's owner and marks it sent. It returns false
// without error when the gateway refused the message.
func (p *Poller) deliver(ctx context.Context, repo *store.Repo, rem *model.Reminder, now time.Time) (bool, error) {
	m, err := repo.FindMembershipByID(rem.MembershipID)
	if err != nil {
		return false, fmt.Errorf("reminder %d membership %d: %w", rem.ID, rem.MembershipID, err)
	}

	member, err := p.gw.ResolveMember(ctx, m.GroupID, m.UserID)
	if err != nil {
		p.log.Warn("resolve member failed",
			zap.Int64("chat", m.GroupID),
			zap.Int64("user", m.UserID),
			zap.Error(err),
		)
		member = gateway.Member{UserID: m.UserID}
	}

	msg := gateway.Text{
		ChatID: m.GroupID,
		Body:   fmt.Sprintf("Remember this, %s?", gateway.Mention(member)),
		HTML:   true,
	}
	if rem.MessageRef != nil {
		ref, err := domain.ParseMessageRef(*rem.MessageRef)
		switch {
		case err != nil:
			p.log.Warn("bad reminder ref", zap.Int64("reminder", rem.ID), zap.Error(err))
		case ref.ChatID == m.GroupID:
			msg.ReplyTo = ref.MessageID
		}
	}

	if _, err := p.gw.SendText(ctx, msg); err != nil {
		p.log.Warn("reminder delivery failed, will retry",
			zap.Int64("reminder", rem.ID),
			zap.Int64("chat", m.GroupID),
			zap.Error(err),
		)
		return false, nil
	}

	if err := repo.MarkReminderSent(rem, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Another pass got there first; the message above is a duplicate.
			p.log.Warn("reminder already marked sent", zap.Int64("reminder", rem.ID))
			return true, nil
		}
		return false, err
	}
	return true, nil
}
