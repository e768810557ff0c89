package model

import "time"

// User is a chat-platform account observed by the bot. ID is the platform's
// own identifier, so it is never generated locally.
type User struct {
	ID         int64 `gorm:"primaryKey;autoIncrement:false"`
	LastActive *time.Time
	Timezone   *string
}

// Location resolves the user's timezone, falling back to UTC when unset or invalid.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(*u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Group is a chat the bot has seen activity in. Immutable after creation.
type Group struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false"`
}

// Membership links a user to a group. At most one row per (user, group) pair.
type Membership struct {
	ID      int64  `gorm:"primaryKey"`
	UserID  int64  `gorm:"not null;uniqueIndex:ux_memberships_user_group"`
	GroupID int64  `gorm:"not null;uniqueIndex:ux_memberships_user_group;index:idx_memberships_group"`
	User    *User  `gorm:"constraint:OnDelete:RESTRICT"`
	Group   *Group `gorm:"constraint:OnDelete:RESTRICT"`
}
