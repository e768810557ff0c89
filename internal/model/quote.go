package model

import "time"

// Quote is a saved reference to a message authored by the membership's user.
// MessageRef is unique across the whole store.
type Quote struct {
	ID           int64       `gorm:"primaryKey"`
	MembershipID int64       `gorm:"not null;index"`
	Membership   *Membership `gorm:"constraint:OnDelete:RESTRICT"`
	MessageRef   string      `gorm:"not null;uniqueIndex"`
	LastSentOn   *time.Time
}
