package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hstefan/fotc/internal/model"
)

// Repo performs reads and writes inside one transaction. It is only handed
// out by Store.Transaction and must not outlive the callback; the
// transaction's context governs every call.
type Repo struct {
	db *gorm.DB
}

// FindOrCreateUser returns the user row, inserting it with last_active=now
// when absent. The insert is an atomic upsert, so concurrent callers for the
// same id converge on one row.
func (r *Repo) FindOrCreateUser(userID int64, now time.Time) (*model.User, error) {
	now = now.UTC()
	return r.findOrCreateUser(model.User{ID: userID, LastActive: &now})
}

// EnsureUser makes sure a row exists for a user the bot has only heard
// about, e.g. the author of a quoted message. A new row gets no last_active,
// so the user's first own message still counts as their first activity.
func (r *Repo) EnsureUser(userID int64) (*model.User, error) {
	return r.findOrCreateUser(model.User{ID: userID})
}

func (r *Repo) findOrCreateUser(u model.User) (*model.User, error) {
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("insert user %d: %w", u.ID, err)
	}
	var out model.User
	if err := r.db.First(&out, "id = ?", u.ID).Error; err != nil {
		return nil, fmt.Errorf("load user %d: %w", u.ID, notFound(err))
	}
	return &out, nil
}

// FindOrCreateGroup is the group counterpart of FindOrCreateUser.
func (r *Repo) FindOrCreateGroup(groupID int64) (*model.Group, error) {
	g := model.Group{ID: groupID}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&g).Error; err != nil {
		return nil, fmt.Errorf("insert group %d: %w", groupID, err)
	}
	var out model.Group
	if err := r.db.First(&out, "id = ?", groupID).Error; err != nil {
		return nil, fmt.Errorf("load group %d: %w", groupID, notFound(err))
	}
	return &out, nil
}

// RecordMembership finds or creates the membership for the (user, group) pair.
func (r *Repo) RecordMembership(group *model.Group, user *model.User) (*model.Membership, error) {
	m := model.Membership{UserID: user.ID, GroupID: group.ID}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("insert membership %d/%d: %w", group.ID, user.ID, err)
	}
	var out model.Membership
	err := r.db.
		Where("user_id = ? AND group_id = ?", user.ID, group.ID).
		First(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load membership %d/%d: %w", group.ID, user.ID, notFound(err))
	}
	return &out, nil
}

// ListGroupMembers returns every user that ever had a membership in group.
func (r *Repo) ListGroupMembers(group *model.Group) ([]model.User, error) {
	members := r.db.Model(&model.Membership{}).Select("user_id").Where("group_id = ?", group.ID)
	var users []model.User
	if err := r.db.Where("id IN (?)", members).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list members of %d: %w", group.ID, err)
	}
	return users, nil
}

// FindMembershipByID returns ErrNotFound when no membership has that id.
func (r *Repo) FindMembershipByID(id int64) (*model.Membership, error) {
	var m model.Membership
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// TouchUser stores the user's latest activity timestamp.
func (r *Repo) TouchUser(user *model.User, at time.Time) error {
	at = at.UTC()
	if err := r.db.Model(user).Update("last_active", at).Error; err != nil {
		return fmt.Errorf("touch user %d: %w", user.ID, err)
	}
	user.LastActive = &at
	return nil
}

// SetUserTimezone stores an already validated IANA zone name.
func (r *Repo) SetUserTimezone(user *model.User, tz string) error {
	if err := r.db.Model(user).Update("timezone", tz).Error; err != nil {
		return fmt.Errorf("set timezone for %d: %w", user.ID, err)
	}
	user.Timezone = &tz
	return nil
}

// CreateReminder inserts a pending reminder. Callers make sure scheduledFor
// lies in the future.
func (r *Repo) CreateReminder(m *model.Membership, messageRef string, scheduledFor time.Time) (*model.Reminder, error) {
	rem := model.Reminder{
		MembershipID: m.ID,
		ScheduledFor: scheduledFor.UTC(),
	}
	if messageRef != "" {
		rem.MessageRef = &messageRef
	}
	if err := r.db.Create(&rem).Error; err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}
	return &rem, nil
}

// QueryDueReminders returns pending reminders scheduled at or before now.
func (r *Repo) QueryDueReminders(now time.Time) ([]model.Reminder, error) {
	var due []model.Reminder
	err := r.db.
		Where("sent_on IS NULL AND scheduled_for <= ?", now.UTC()).
		Order("scheduled_for ASC").
		Order("id ASC").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	return due, nil
}

// MarkReminderSent moves a reminder from pending to sent. A reminder that is
// already sent yields ErrConflict; the transition happens once.
func (r *Repo) MarkReminderSent(rem *model.Reminder, at time.Time) error {
	at = at.UTC()
	res := r.db.Model(&model.Reminder{}).
		Where("id = ? AND sent_on IS NULL", rem.ID).
		Update("sent_on", at)
	if res.Error != nil {
		return fmt.Errorf("mark reminder %d sent: %w", rem.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reminder %d already sent: %w", rem.ID, ErrConflict)
	}
	rem.SentOn = &at
	return nil
}

// CreateQuote saves a quote. A message_ref that is already quoted yields
// ErrConflict and leaves the existing row untouched.
func (r *Repo) CreateQuote(m *model.Membership, messageRef string) (*model.Quote, error) {
	q := model.Quote{MembershipID: m.ID, MessageRef: messageRef}
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&q)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, fmt.Errorf("quote %s: %w", messageRef, ErrConflict)
		}
		return nil, fmt.Errorf("create quote %s: %w", messageRef, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("quote %s: %w", messageRef, ErrConflict)
	}
	return &q, nil
}

// GetUserQuotes lists a membership's quotes, never-replayed first, then by
// oldest replay.
func (r *Repo) GetUserQuotes(m *model.Membership) ([]model.Quote, error) {
	var quotes []model.Quote
	err := r.db.
		Where("membership_id = ?", m.ID).
		Order("last_sent_on IS NOT NULL").
		Order("last_sent_on ASC").
		Order("id ASC").
		Find(&quotes).Error
	if err != nil {
		return nil, fmt.Errorf("list quotes of membership %d: %w", m.ID, err)
	}
	return quotes, nil
}

// FindQuote looks a quote up within a membership.
func (r *Repo) FindQuote(m *model.Membership, messageRef string) (*model.Quote, error) {
	var q model.Quote
	err := r.db.
		Where("membership_id = ? AND message_ref = ?", m.ID, messageRef).
		First(&q).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

// FindQuoteByRef looks a quote up regardless of owner.
func (r *Repo) FindQuoteByRef(messageRef string) (*model.Quote, error) {
	var q model.Quote
	if err := r.db.Where("message_ref = ?", messageRef).First(&q).Error; err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

// MarkQuoteSent records a replay.
func (r *Repo) MarkQuoteSent(q *model.Quote, at time.Time) error {
	at = at.UTC()
	if err := r.db.Model(q).Update("last_sent_on", at).Error; err != nil {
		return fmt.Errorf("mark quote %d sent: %w", q.ID, err)
	}
	q.LastSentOn = &at
	return nil
}

// DeleteQuote removes a quote. Ownership is checked by the caller.
func (r *Repo) DeleteQuote(q *model.Quote) error {
	res := r.db.Delete(&model.Quote{}, q.ID)
	if res.Error != nil {
		return fmt.Errorf("delete quote %d: %w", q.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Savepoint runs fn in a nested transaction. A failure inside fn rolls back
// only fn's writes; the enclosing transaction stays usable.
func (r *Repo) Savepoint(fn func(repo *Repo) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}
