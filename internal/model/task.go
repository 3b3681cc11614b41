package model

import "time"

// Time units stored in Task.TimeUnit.
const (
	UnitMinutes = "minutos"
	UnitHours   = "horas"
	UnitDays    = "días"
)

// Task is a study task or one scheduled review of it. As stored, TimeUnit selects the
// gap field: DaysRemaining for UnitDays, MinutesRemaining for the sub-day units. Loaded
// tasks always carry a live DaysRemaining countdown to their date; MinutesRemaining keeps
// the stored sub-day gap.
type Task struct {
	ID               uint  `gorm:"primaryKey"`
	UserID           uint  `gorm:"index"`
	CategoryID       *uint `gorm:"index"`
	ParentID         *uint `gorm:"index"`
	Title            string
	Description      string
	CurrentDate      string `gorm:"column:task_date;size:10;index"`
	Weekday          string
	DaysRemaining    int
	MinutesRemaining int
	TimeUnit         string
	IsRepetition     bool `gorm:"default:false"`
	RepetitionIndex  int
	NextReviewDate   *string `gorm:"size:10"`
	PlanKey          string
	ReviewAt         *time.Time
	ReminderID       string `gorm:"size:64"`
	Position         int64  `gorm:"index"`
	IsCompleted      bool   `gorm:"default:false"`
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Recomputed on every load.
	Overdue      bool `gorm:"-"`
	MinutesSince int  `gorm:"-"`
}
