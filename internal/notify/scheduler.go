package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Fabian-Z77/StudySpace/internal/clock"
	"github.com/Fabian-Z77/StudySpace/internal/model"
)

const defaultSendTimeout = 30 * time.Second

// once fires a single time at an absolute instant.
type once struct {
	at time.Time
}

func (o once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

type registration struct {
	entry cron.EntryID
}

// Scheduler is a Notifier backed by a cron runner and a persistent Store.
type Scheduler struct {
	cron  *cron.Cron
	store Store
	now   clock.Clock
	log   zerolog.Logger

	mu      sync.Mutex
	sender  Sender
	entries map[string]*registration
}

func NewScheduler(store Store, loc *time.Location, c clock.Clock, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		store:   store,
		now:     clock.OrSystem(c),
		log:     log.With().Str("component", "notify").Logger(),
		entries: make(map[string]*registration),
	}
}

// SetSender attaches the delivery channel. Alerts firing without one are marked failed.
func (s *Scheduler) SetSender(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScheduleAt persists n and arms a one-shot trigger, replacing any alert with the same ID.
func (s *Scheduler) ScheduleAt(ctx context.Context, n Notification) error {
	if n.ID == "" {
		return errors.New("schedule notification: id is required")
	}
	if !n.At.After(s.now()) {
		return fmt.Errorf("schedule %s at %s: %w", n.ID, n.At.Format(time.RFC3339), ErrInPast)
	}

	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("schedule %s: encode data: %w", n.ID, err)
	}
	reminder := &model.Reminder{
		ID:        n.ID,
		Recipient: n.Recipient,
		FireAt:    n.At,
		Title:     n.Title,
		Body:      n.Body,
		Data:      string(data),
	}
	if err := s.store.Upsert(ctx, reminder); err != nil {
		return fmt.Errorf("schedule %s: %w", n.ID, err)
	}

	s.arm(n.ID, n.At)
	s.log.Debug().Str("id", n.ID).Time("at", n.At).Int64("recipient", n.Recipient).Msg("notification scheduled")
	return nil
}

// Cancel disarms and forgets the alert. Unknown IDs are ignored.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	if reg, ok := s.entries[id]; ok {
		s.cron.Remove(reg.entry)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	return nil
}

// ListScheduled returns the alerts that have not been delivered yet.
func (s *Scheduler) ListScheduled(ctx context.Context) ([]Notification, error) {
	reminders, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(reminders))
	for _, r := range reminders {
		n := Notification{
			ID:        r.ID,
			Recipient: r.Recipient,
			At:        r.FireAt,
			Title:     r.Title,
			Body:      r.Body,
			LastError: r.LastError,
		}
		if r.Data != "" {
			if err := json.Unmarshal([]byte(r.Data), &n.Data); err != nil {
				s.log.Warn().Err(err).Str("id", r.ID).Msg("corrupt notification data")
			}
		}
		out = append(out, n)
	}
	return out, nil
}

// Restore re-arms stored alerts after a restart. Alerts whose time already passed are
// dropped unless their delivery failed; those stay for diagnostics. It returns how many
// alerts were armed.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	reminders, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore notifications: %w", err)
	}
	now := s.now()
	armed := 0
	for _, r := range reminders {
		if !r.FireAt.After(now) {
			if r.LastError != "" {
				continue
			}
			if err := s.store.Delete(ctx, r.ID); err != nil {
				s.log.Warn().Err(err).Str("id", r.ID).Msg("drop expired notification")
			}
			continue
		}
		s.arm(r.ID, r.FireAt)
		armed++
	}
	s.log.Info().Int("armed", armed).Int("stored", len(reminders)).Msg("notifications restored")
	return armed, nil
}

// Armed reports whether a trigger is currently registered for id.
func (s *Scheduler) Armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

func (s *Scheduler) arm(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.entries[id]; ok {
		s.cron.Remove(prev.entry)
	}
	reg := &registration{}
	reg.entry = s.cron.Schedule(once{at: at}, cron.FuncJob(func() { s.fire(id, reg) }))
	s.entries[id] = reg
}

func (s *Scheduler) fire(id string, reg *registration) {
	s.mu.Lock()
	current, ok := s.entries[id]
	if !ok || current != reg {
		s.mu.Unlock()
		return
	}
	s.cron.Remove(reg.entry)
	delete(s.entries, id)
	sender := s.sender
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
	defer cancel()

	reminder, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("fired notification not found")
		return
	}
	if reminder.SentAt != nil {
		return
	}

	if sender == nil {
		err = ErrNoSender
	} else {
		err = sender.Deliver(ctx, reminder.Recipient, reminder.Title, reminder.Body)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("id", id).Int64("recipient", reminder.Recipient).Msg("notification delivery failed")
		if markErr := s.store.MarkFailed(ctx, id, err); markErr != nil {
			s.log.Error().Err(markErr).Str("id", id).Msg("record delivery failure")
		}
		return
	}
	if err := s.store.MarkSent(ctx, id, s.now()); err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("record delivery")
		return
	}
	s.log.Info().Str("id", id).Int64("recipient", reminder.Recipient).Msg("notification delivered")
}
