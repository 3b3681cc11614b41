package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fabian-Z77/StudySpace/internal/clock"
	"github.com/Fabian-Z77/StudySpace/internal/notify"
	"github.com/Fabian-Z77/StudySpace/internal/schedule"
)

const (
	ReminderTitle   = "¡Hora de repasar! 📚"
	PostponeDelay   = time.Hour
	postponedSuffix = "-pospuesto"

	// NoDayReminderHour disables moving day-level reviews to a fixed hour.
	NoDayReminderHour = -1
)

var reminderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Fabian-Z77/StudySpace/reminders"))

// ScheduledReminder is one alert accepted by the notifier.
type ScheduledReminder struct {
	Sequence int
	ID       string
	At       time.Time
}

// DispatchResult reports what happened to each entry. Warning aggregates notifier
// failures; it never means the task itself was lost.
type DispatchResult struct {
	Scheduled []ScheduledReminder
	Skipped   []int
	Warning   error
}

// ReminderService turns schedule entries into notifications.
type ReminderService struct {
	notifier notify.Notifier
	loc      *time.Location
	now      clock.Clock
	dayHour  int
	log      zerolog.Logger
}

// NewReminderService builds the dispatcher. Reviews a day or more away fire at dayHour
// local time on their day; pass NoDayReminderHour to fire at the exact target time.
func NewReminderService(notifier notify.Notifier, loc *time.Location, c clock.Clock, dayHour int, log zerolog.Logger) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	if dayHour > 23 {
		dayHour = NoDayReminderHour
	}
	return &ReminderService{
		notifier: notifier,
		loc:      loc,
		now:      clock.OrSystem(c),
		dayHour:  dayHour,
		log:      log.With().Str("component", "reminders").Logger(),
	}
}

// ReminderID is the deterministic notification id of one review. The same recipient,
// label, sequence and target always give the same id.
func ReminderID(recipient int64, label string, sequence int, target time.Time) string {
	name := fmt.Sprintf("%d|%s|%d|%s", recipient, label, sequence, target.UTC().Format(time.RFC3339))
	return "repaso-" + uuid.NewSHA1(reminderNamespace, []byte(name)).String()
}

// ReminderBody is the text shown for review sequence of label.
func ReminderBody(sequence int, label string) string {
	return fmt.Sprintf("Repaso %d: %s", sequence, label)
}

// FireAt returns when the alert for target should fire and whether it is still worth
// scheduling. Targets closer than the safety margin (30s under an hour, 60s otherwise)
// are not.
func (s *ReminderService) FireAt(target time.Time) (time.Time, bool) {
	now := s.now()
	gap := target.Sub(now)

	at := target
	if s.dayHour >= 0 && gap >= 24*time.Hour {
		local := target.In(s.loc)
		at = time.Date(local.Year(), local.Month(), local.Day(), s.dayHour, 0, 0, 0, s.loc)
	}

	margin := 60 * time.Second
	if gap < time.Hour {
		margin = 30 * time.Second
	}
	return at, at.After(now.Add(margin))
}

// ScheduleReminders requests one alert per entry. Skipped entries and notifier failures
// are reported in the result, never as an error.
func (s *ReminderService) ScheduleReminders(ctx context.Context, recipient int64, label string, entries []schedule.Entry, planName string) DispatchResult {
	var (
		result DispatchResult
		errs   []error
	)
	label = strings.TrimSpace(label)

	for _, entry := range entries {
		at, ok := s.FireAt(entry.Target)
		if !ok {
			s.log.Debug().Int("repaso", entry.Sequence).Time("target", entry.Target).Msg("review too close, reminder skipped")
			result.Skipped = append(result.Skipped, entry.Sequence)
			continue
		}

		n := notify.Notification{
			ID:        ReminderID(recipient, label, entry.Sequence, entry.Target),
			Recipient: recipient,
			At:        at,
			Title:     ReminderTitle,
			Body:      ReminderBody(entry.Sequence, label),
			Data: map[string]string{
				"task":   label,
				"repaso": strconv.Itoa(entry.Sequence),
				"plan":   planName,
				"tipo":   "repaso",
				"fecha":  entry.Target.In(s.loc).Format(time.RFC3339),
			},
		}
		if err := s.notifier.ScheduleAt(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("id", n.ID).Int("repaso", entry.Sequence).Msg("schedule reminder")
			errs = append(errs, fmt.Errorf("repaso %d: %w", entry.Sequence, err))
			continue
		}
		result.Scheduled = append(result.Scheduled, ScheduledReminder{Sequence: entry.Sequence, ID: n.ID, At: at})
	}

	result.Warning = errors.Join(errs...)
	return result
}

// CancelReminders cancels every id; empty ids are ignored. Failures are joined.
func (s *ReminderService) CancelReminders(ctx context.Context, ids ...string) error {
	var errs []error
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := s.notifier.Cancel(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Postpone cancels the alert id and schedules it again one hour from now. It returns the
// id of the postponed alert.
func (s *ReminderService) Postpone(ctx context.Context, recipient int64, id, label string, sequence int) (string, error) {
	if err := s.notifier.Cancel(ctx, id); err != nil {
		return "", fmt.Errorf("postpone %s: %w", id, err)
	}

	newID := id
	if !strings.HasSuffix(id, postponedSuffix) {
		newID = id + postponedSuffix
	}
	at := s.now().Add(PostponeDelay)
	err := s.notifier.ScheduleAt(ctx, notify.Notification{
		ID:        newID,
		Recipient: recipient,
		At:        at,
		Title:     ReminderTitle,
		Body:      ReminderBody(sequence, label),
		Data: map[string]string{
			"task":   label,
			"repaso": strconv.Itoa(sequence),
			"tipo":   "repaso",
			"fecha":  at.In(s.loc).Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("postpone %s: %w", id, err)
	}
	return newID, nil
}

// ListScheduled returns the recipient's pending alerts, earliest first.
func (s *ReminderService) ListScheduled(ctx context.Context, recipient int64) ([]notify.Notification, error) {
	all, err := s.notifier.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	out := make([]notify.Notification, 0, len(all))
	for _, n := range all {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out, nil
}

// Location is the zone used for day-level reminders.
func (s *ReminderService) Location() *time.Location { return s.loc }
