package presence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hstefan/fotc/internal/domain"
	"github.com/hstefan/fotc/internal/model"
	"github.com/hstefan/fotc/internal/store"
)

// DefaultIdleThreshold is how long a member must be silent for their next
// message to count as a return.
const DefaultIdleThreshold = 12 * time.Hour

// IdleHandler reacts to a member returning after an idle period. It runs on
// the caller's transaction and must not fail it.
type IdleHandler interface {
	OnIdleReturn(ctx context.Context, repo *store.Repo, m *model.Membership)
}

// Result is what Touch loaded or created, handed back so command handlers
// don't look the same rows up again.
type Result struct {
	User       *model.User
	Group      *model.Group
	Membership *model.Membership
	// PrevActivity is the user's last activity before this event.
	PrevActivity time.Time
	IdleReturn   bool
}

// Tracker records activity and detects idle returns.
type Tracker struct {
	threshold time.Duration
	onIdle    IdleHandler
	log       *zap.Logger
	now       func() time.Time
}

// NewTracker builds a tracker. onIdle may be nil.
func NewTracker(threshold time.Duration, onIdle IdleHandler, log *zap.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	return &Tracker{
		threshold: threshold,
		onIdle:    onIdle,
		log:       log,
		now:       time.Now,
	}
}

// Touch registers activity by userID in groupID within repo's transaction.
func (t *Tracker) Touch(ctx context.Context, repo *store.Repo, userID, groupID int64) (*Result, error) {
	now := t.now().UTC()

	user, err := repo.FindOrCreateUser(userID, now)
	if err != nil {
		return nil, err
	}
	group, err := repo.FindOrCreateGroup(groupID)
	if err != nil {
		return nil, err
	}
	membership, err := repo.RecordMembership(group, user)
	if err != nil {
		return nil, err
	}

	prev := now
	if user.LastActive != nil {
		prev = *user.LastActive
	}
	if err := repo.TouchUser(user, now); err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}

	res := &Result{
		User:         user,
		Group:        group,
		Membership:   membership,
		PrevActivity: prev,
		IdleReturn:   domain.IdleReturn(&prev, now, t.threshold),
	}
	if res.IdleReturn {
		t.log.Debug("idle return",
			zap.Int64("user", userID),
			zap.Int64("group", groupID),
			zap.Duration("idle", now.Sub(prev)),
		)
		if t.onIdle != nil {
			t.onIdle.OnIdleReturn(ctx, repo, membership)
		}
	}
	return res, nil
}
