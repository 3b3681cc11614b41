package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fabian-Z77/StudySpace/internal/clock"
	"github.com/Fabian-Z77/StudySpace/internal/plan"
	"github.com/Fabian-Z77/StudySpace/internal/schedule"
)

func TestReminderIDIsDeterministic(t *testing.T) {
	target := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	id := ReminderID(7, "Álgebra", 1, target)
	assert.True(t, strings.HasPrefix(id, "repaso-"))
	assert.Equal(t, id, ReminderID(7, "Álgebra", 1, target))
	assert.Equal(t, id, ReminderID(7, "Álgebra", 1, target.In(time.FixedZone("x", -4*3600))))

	assert.NotEqual(t, id, ReminderID(8, "Álgebra", 1, target))
	assert.NotEqual(t, id, ReminderID(7, "Física", 1, target))
	assert.NotEqual(t, id, ReminderID(7, "Álgebra", 2, target))
	assert.NotEqual(t, id, ReminderID(7, "Álgebra", 1, target.Add(time.Minute)))
}

func TestScheduleRemindersIsIdempotent(t *testing.T) {
	loc := santiago(t)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, loc)
	env := newTestEnv(t, now)
	p, err := plan.Lookup(plan.Leitner3)
	require.NoError(t, err)
	entries := schedule.Generate(time.Date(2025, 6, 1, 9, 0, 0, 0, loc), p)

	first := env.reminders.ScheduleReminders(context.Background(), 1001, "Álgebra", entries, p.Name)
	ids := env.notifier.ids()
	second := env.reminders.ScheduleReminders(context.Background(), 1001, "Álgebra", entries, p.Name)

	require.NoError(t, first.Warning)
	require.NoError(t, second.Warning)
	assert.Len(t, ids, 3)
	assert.Equal(t, ids, env.notifier.ids())
	assert.Equal(t, first.Scheduled, second.Scheduled)
}

func TestScheduleRemindersContent(t *testing.T) {
	loc := santiago(t)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, loc)
	env := newTestEnv(t, now)
	entries := []schedule.Entry{{Sequence: 1, Target: now.Add(2 * time.Hour), Offset: 0.1}}

	res := env.reminders.ScheduleReminders(context.Background(), 1001, "  Álgebra ", entries, "Plan X")
	require.Len(t, res.Scheduled, 1)

	n := env.notifier.scheduled[res.Scheduled[0].ID]
	assert.Equal(t, int64(1001), n.Recipient)
	assert.Equal(t, ReminderTitle, n.Title)
	assert.Equal(t, "Repaso 1: Álgebra", n.Body)
	assert.Equal(t, map[string]string{
		"task":   "Álgebra",
		"repaso": "1",
		"plan":   "Plan X",
		"tipo":   "repaso",
		"fecha":  "2025-06-01T10:00:00-04:00",
	}, n.Data)
}

func TestScheduleRemindersSkipPolicy(t *testing.T) {
	loc := santiago(t)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, loc)
	env := newTestEnv(t, now)

	entries := []schedule.Entry{
		{Sequence: 1, Target: now.Add(-time.Hour)},
		{Sequence: 2, Target: now.Add(20 * time.Second)},
		{Sequence: 3, Target: now.Add(45 * time.Second)},
		{Sequence: 4, Target: now.Add(2 * time.Hour)},
		{Sequence: 5, Target: time.Date(2025, 6, 3, 15, 30, 0, 0, loc)},
	}
	res := env.reminders.ScheduleReminders(context.Background(), 1001, "Álgebra", entries, "p")

	require.NoError(t, res.Warning)
	assert.Equal(t, []int{1, 2}, res.Skipped)
	require.Len(t, res.Scheduled, 3)
	assert.Equal(t, now.Add(45*time.Second), res.Scheduled[0].At)
	assert.Equal(t, now.Add(2*time.Hour), res.Scheduled[1].At)
	assert.Equal(t, time.Date(2025, 6, 3, 9, 0, 0, 0, loc), res.Scheduled[2].At)
}

func TestFireAtExactWhenDayHourDisabled(t *testing.T) {
	loc := santiago(t)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, loc)
	svc := NewReminderService(newFakeNotifier(), loc, clock.Fixed(now), NoDayReminderHour, zerolog.Nop())

	target := time.Date(2025, 6, 3, 15, 30, 0, 0, loc)
	at, ok := svc.FireAt(target)
	assert.True(t, ok)
	assert.Equal(t, target, at)
}

func TestFireAtMargins(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	svc := NewReminderService(newFakeNotifier(), time.UTC, clock.Fixed(now), 9, zerolog.Nop())

	tests := []struct {
		gap  time.Duration
		want bool
	}{
		{-time.Minute, false},
		{0, false},
		{30 * time.Second, false},
		{31 * time.Second, true},
		{time.Hour, true},
		{23 * time.Hour, true},
	}
	for _, tt := range tests {
		_, ok := svc.FireAt(now.Add(tt.gap))
		assert.Equal(t, tt.want, ok, "gap %s", tt.gap)
	}
}

func TestScheduleRemindersReportsFailuresAsWarning(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	boom := errors.New("permission denied")
	env.notifier.err = boom

	entries := []schedule.Entry{
		{Sequence: 1, Target: now.Add(time.Hour)},
		{Sequence: 2, Target: now.Add(2 * time.Hour)},
	}
	res := env.reminders.ScheduleReminders(context.Background(), 1001, "Álgebra", entries, "p")

	assert.Empty(t, res.Scheduled)
	require.Error(t, res.Warning)
	assert.ErrorIs(t, res.Warning, boom)
	assert.Contains(t, res.Warning.Error(), "repaso 2")
}

func TestPostpone(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	res := env.reminders.ScheduleReminders(ctx, 1001, "Álgebra", []schedule.Entry{{Sequence: 2, Target: now.Add(10 * time.Minute)}}, "p")
	require.Len(t, res.Scheduled, 1)
	id := res.Scheduled[0].ID

	newID, err := env.reminders.Postpone(ctx, 1001, id, "Álgebra", 2)
	require.NoError(t, err)
	assert.Equal(t, id+"-pospuesto", newID)
	assert.Contains(t, env.notifier.cancelled, id)

	n, ok := env.notifier.scheduled[newID]
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), n.At)
	assert.Equal(t, "Repaso 2: Álgebra", n.Body)

	again, err := env.reminders.Postpone(ctx, 1001, newID, "Álgebra", 2)
	require.NoError(t, err)
	assert.Equal(t, newID, again)
	assert.Equal(t, []string{newID}, env.notifier.ids())
}

func TestListScheduledFiltersRecipient(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()
	entries := []schedule.Entry{{Sequence: 1, Target: now.Add(time.Hour)}}

	env.reminders.ScheduleReminders(ctx, 1, "a", entries, "p")
	env.reminders.ScheduleReminders(ctx, 2, "b", entries, "p")

	mine, err := env.reminders.ListScheduled(ctx, 2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Repaso 1: b", mine[0].Body)
}

func TestCancelRemindersIgnoresEmptyIDs(t *testing.T) {
	env := newTestEnv(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	require.NoError(t, env.reminders.CancelReminders(context.Background(), "", "repaso-x"))
	assert.Equal(t, []string{"repaso-x"}, env.notifier.cancelled)
}
