package presence

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/hstefan/fotc/internal/domain"
	"github.com/hstefan/fotc/internal/model"
	"github.com/hstefan/fotc/internal/store"
)

// Forwarder copies an existing message into another chat.
type Forwarder interface {
	ForwardMessage(ctx context.Context, fromChatID, toChatID int64, messageID int) error
}

// Replayer picks one of a returning member's quotes and forwards it into the
// group the member came back to.
type Replayer struct {
	fwd  Forwarder
	log  *zap.Logger
	now  func() time.Time
	intn func(n int) int
}

func NewReplayer(fwd Forwarder, log *zap.Logger) *Replayer {
	return &Replayer{
		fwd:  fwd,
		log:  log,
		now:  time.Now,
		intn: rand.Intn,
	}
}

// OnIdleReturn replays a quote, logging instead of failing.
func (r *Replayer) OnIdleReturn(ctx context.Context, repo *store.Repo, m *model.Membership) {
	q, err := r.Replay(ctx, repo, m)
	if err != nil {
		r.log.Warn("quote replay failed",
			zap.Int64("membership", m.ID),
			zap.Error(err),
		)
		return
	}
	if q != nil {
		r.log.Info("quote replayed",
			zap.Int64("membership", m.ID),
			zap.String("ref", q.MessageRef),
		)
	}
}

// Replay forwards a uniformly random quote of m and stamps its last_sent_on.
// It returns nil, nil when m has no quotes. The work runs under a savepoint
// so a failure leaves the caller's writes intact.
func (r *Replayer) Replay(ctx context.Context, repo *store.Repo, m *model.Membership) (*model.Quote, error) {
	var picked *model.Quote
	err := repo.Savepoint(func(tx *store.Repo) error {
		quotes, err := tx.GetUserQuotes(m)
		if err != nil {
			return err
		}
		if len(quotes) == 0 {
			return nil
		}
		q := quotes[r.intn(len(quotes))]

		ref, err := domain.ParseMessageRef(q.MessageRef)
		if err != nil {
			return err
		}
		if err := r.fwd.ForwardMessage(ctx, ref.ChatID, m.GroupID, ref.MessageID); err != nil {
			return fmt.Errorf("forward %s: %w", q.MessageRef, err)
		}
		if err := tx.MarkQuoteSent(&q, r.now()); err != nil {
			return err
		}
		picked = &q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}
