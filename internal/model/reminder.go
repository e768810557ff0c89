package model

import "time"

// Reminder is a scheduled ping about a message. SentOn is nil while pending.
type Reminder struct {
	ID           int64       `gorm:"primaryKey"`
	MembershipID int64       `gorm:"not null;index"`
	Membership   *Membership `gorm:"constraint:OnDelete:RESTRICT"`
	MessageRef   *string
	ScheduledFor time.Time  `gorm:"not null;index:idx_reminders_due"`
	SentOn       *time.Time `gorm:"index:idx_reminders_due"`
}

// Pending reports whether the reminder still awaits delivery.
func (r *Reminder) Pending() bool { return r.SentOn == nil }

