package presence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hstefan/fotc/internal/domain"
	"github.com/hstefan/fotc/internal/model"
	"github.com/hstefan/fotc/internal/store"
)

const (
	testUser  int64 = 10
	testGroup int64 = -100
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.Options{
		Driver: store.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "fotc.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type countingIdle struct{ calls []int64 }

func (c *countingIdle) OnIdleReturn(_ context.Context, _ *store.Repo, m *model.Membership) {
	c.calls = append(c.calls, m.ID)
}

type forwardCall struct {
	from, to int64
	msg      int
}

type fakeForwarder struct {
	calls []forwardCall
	err   error
}

func (f *fakeForwarder) ForwardMessage(_ context.Context, from, to int64, msg int) error {
	f.calls = append(f.calls, forwardCall{from: from, to: to, msg: msg})
	return f.err
}

func touchAt(t *testing.T, s *store.Store, tr *Tracker, at time.Time) *Result {
	t.Helper()
	tr.now = func() time.Time { return at }
	var res *Result
	require.NoError(t, s.Transaction(context.Background(), func(repo *store.Repo) error {
		var err error
		res, err = tr.Touch(context.Background(), repo, testUser, testGroup)
		return err
	}))
	return res
}

func TestTouch_FirstActivityNeverReplays(t *testing.T) {
	s := newStore(t)
	idle := &countingIdle{}
	tr := NewTracker(12*time.Hour, idle, zap.NewNop())

	res := touchAt(t, s, tr, time.Now())
	assert.False(t, res.IdleReturn)
	assert.Empty(t, idle.calls)
	assert.Equal(t, testUser, res.User.ID)
	assert.Equal(t, testGroup, res.Group.ID)
	assert.Equal(t, testUser, res.Membership.UserID)
}

func TestTouch_IdleReturnAfterThirteenHours(t *testing.T) {
	s := newStore(t)
	idle := &countingIdle{}
	tr := NewTracker(12*time.Hour, idle, zap.NewNop())
	start := time.Now().UTC().Add(-13 * time.Hour).Truncate(time.Second)

	first := touchAt(t, s, tr, start)
	res := touchAt(t, s, tr, start.Add(13*time.Hour))

	assert.True(t, res.IdleReturn)
	require.Len(t, idle.calls, 1)
	assert.Equal(t, first.Membership.ID, idle.calls[0])
	assert.True(t, res.PrevActivity.Equal(start))
	require.NotNil(t, res.User.LastActive)
	assert.True(t, res.User.LastActive.Equal(start.Add(13*time.Hour)))
}

func TestTouch_NoReplayAfterOneHour(t *testing.T) {
	s := newStore(t)
	idle := &countingIdle{}
	tr := NewTracker(12*time.Hour, idle, zap.NewNop())
	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	touchAt(t, s, tr, start)
	res := touchAt(t, s, tr, start.Add(time.Hour))

	assert.False(t, res.IdleReturn)
	assert.Empty(t, idle.calls)
}

func seedQuotes(t *testing.T, s *store.Store, refs ...domain.MessageRef) *model.Membership {
	t.Helper()
	tr := NewTracker(0, nil, zap.NewNop())
	res := touchAt(t, s, tr, time.Now())
	require.NoError(t, s.Transaction(context.Background(), func(repo *store.Repo) error {
		for _, ref := range refs {
			if _, err := repo.CreateQuote(res.Membership, ref.String()); err != nil {
				return err
			}
		}
		return nil
	}))
	return res.Membership
}

func TestReplay_ForwardsPickedQuoteAndStampsIt(t *testing.T) {
	s := newStore(t)
	refs := []domain.MessageRef{{ChatID: testGroup, MessageID: 5}, {ChatID: testGroup, MessageID: 6}}
	m := seedQuotes(t, s, refs...)

	fwd := &fakeForwarder{}
	rp := NewReplayer(fwd, zap.NewNop())
	rp.intn = func(n int) int { return n - 1 }
	at := time.Now().UTC().Truncate(time.Second)
	rp.now = func() time.Time { return at }

	var got *model.Quote
	require.NoError(t, s.Transaction(context.Background(), func(repo *store.Repo) error {
		var err error
		got, err = rp.Replay(context.Background(), repo, m)
		return err
	}))

	require.NotNil(t, got)
	require.Len(t, fwd.calls, 1)
	assert.Equal(t, forwardCall{from: testGroup, to: testGroup, msg: 6}, fwd.calls[0])

	require.NoError(t, s.Transaction(context.Background(), func(repo *store.Repo) error {
		q, err := repo.FindQuote(m, refs[1].String())
		require.NoError(t, err)
		require.NotNil(t, q.LastSentOn)
		assert.True(t, q.LastSentOn.Equal(at))
		return nil
	}))
}

func TestReplay_NoQuotesIsNoop(t *testing.T) {
	s := newStore(t)
	m := seedQuotes(t, s)
	fwd := &fakeForwarder{}
	rp := NewReplayer(fwd, zap.NewNop())

	require.NoError(t, s.Transaction(context.Background(), func(repo *store.Repo) error {
		q, err := rp.Replay(context.Background(), repo, m)
		assert.Nil(t, q)
		return err
	}))
	assert.Empty(t, fwd.calls)
}

func TestReplay_ForwardFailureKeepsPresenceUpdate(t *testing.T) {
	s := newStore(t)
	ref := domain.MessageRef{ChatID: testGroup, MessageID: 5}
	seedQuotes(t, s, ref)

	fwd := &fakeForwarder{err: errors.New("forbidden")}
	tr := NewTracker(12*time.Hour, NewReplayer(fwd, zap.NewNop()), zap.NewNop())

	// Backdate the user so the next touch is an idle return.
	past := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)
	require.NoError(t, s.Transaction(context.Background(), func(repo *store.Repo) error {
		u, err := repo.FindOrCreateUser(testUser, past)
		if err != nil {
			return err
		}
		return repo.TouchUser(u, past)
	}))

	now := time.Now().UTC().Truncate(time.Second)
	res := touchAt(t, s, tr, now)
	assert.True(t, res.IdleReturn)
	assert.Len(t, fwd.calls, 1)

	require.NoError(t, s.Transaction(context.Background(), func(repo *store.Repo) error {
		u, err := repo.FindOrCreateUser(testUser, time.Now())
		require.NoError(t, err)
		require.NotNil(t, u.LastActive)
		assert.True(t, u.LastActive.Equal(now), "presence update must survive a failed replay")

		q, err := repo.FindQuoteByRef(ref.String())
		require.NoError(t, err)
		assert.Nil(t, q.LastSentOn)
		return nil
	}))
}
