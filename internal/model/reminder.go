package model

import "time"

// Reminder is a scheduled alert. Its ID is derived from the review it announces, so
// scheduling the same review twice updates the same row.
type Reminder struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Recipient int64     `gorm:"index"`
	FireAt    time.Time `gorm:"index"`
	Title     string
	Body      string
	Data      string
	SentAt    *time.Time
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
