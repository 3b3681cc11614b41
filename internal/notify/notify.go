// Package notify schedules alerts at absolute instants and delivers them through a Sender.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Fabian-Z77/StudySpace/internal/model"
)

var (
	// ErrInPast is returned when an alert is requested for an instant that already passed.
	ErrInPast = errors.New("notification time is not in the future")
	// ErrNoSender is recorded when an alert fires before a Sender is attached.
	ErrNoSender = errors.New("no sender attached")
)

// Notification is one scheduled alert.
type Notification struct {
	ID        string
	Recipient int64
	At        time.Time
	Title     string
	Body      string
	Data      map[string]string
	LastError string
}

// Notifier schedules and cancels alerts by ID. Scheduling an existing ID replaces it.
type Notifier interface {
	ScheduleAt(ctx context.Context, n Notification) error
	Cancel(ctx context.Context, id string) error
	ListScheduled(ctx context.Context) ([]Notification, error)
}

// Sender delivers a fired alert to its recipient.
type Sender interface {
	Deliver(ctx context.Context, recipient int64, title, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, recipient int64, title, body string) error

func (f SenderFunc) Deliver(ctx context.Context, recipient int64, title, body string) error {
	return f(ctx, recipient, title, body)
}

// Store persists alerts. *repository.ReminderRepository implements it.
type Store interface {
	Upsert(ctx context.Context, reminder *model.Reminder) error
	FindByID(ctx context.Context, id string) (*model.Reminder, error)
	ListPending(ctx context.Context) ([]model.Reminder, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, cause error) error
	Delete(ctx context.Context, id string) error
}
