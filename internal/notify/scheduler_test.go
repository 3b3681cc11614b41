package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fabian-Z77/StudySpace/internal/clock"
	"github.com/Fabian-Z77/StudySpace/internal/repository"
)

type delivery struct {
	recipient   int64
	title, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []delivery
	err  error
}

func (f *fakeSender) Deliver(_ context.Context, recipient int64, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, delivery{recipient: recipient, title: title, body: body})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestScheduler(t *testing.T, now clock.Clock) (*Scheduler, *repository.ReminderRepository) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:notify_%s?mode=memory&cache=shared", name), zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := repository.NewReminderRepository(db)
	return NewScheduler(store, time.UTC, now, zerolog.Nop()), store
}

func TestOnceSchedule(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := once{at: at}

	assert.Equal(t, at, s.Next(at.Add(-time.Hour)))
	assert.True(t, s.Next(at).IsZero())
	assert.True(t, s.Next(at.Add(time.Minute)).IsZero())
}

func TestScheduleAtPersistsAndArms(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, store := newTestScheduler(t, clock.Fixed(now))
	ctx := context.Background()

	err := s.ScheduleAt(ctx, Notification{
		ID:        "repaso-a",
		Recipient: 42,
		At:        now.Add(time.Hour),
		Title:     "¡Hora de repasar! 📚",
		Body:      "Repaso 1: Álgebra",
		Data:      map[string]string{"repaso": "1", "tipo": "repaso"},
	})
	require.NoError(t, err)
	assert.True(t, s.Armed("repaso-a"))

	stored, err := store.FindByID(ctx, "repaso-a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.Recipient)
	assert.True(t, stored.FireAt.Equal(now.Add(time.Hour)))

	listed, err := s.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Repaso 1: Álgebra", listed[0].Body)
	assert.Equal(t, "1", listed[0].Data["repaso"])
}

func TestScheduleAtRejectsPastAndMissingID(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, clock.Fixed(now))
	ctx := context.Background()

	err := s.ScheduleAt(ctx, Notification{ID: "late", At: now})
	assert.ErrorIs(t, err, ErrInPast)
	assert.False(t, s.Armed("late"))

	err = s.ScheduleAt(ctx, Notification{At: now.Add(time.Hour)})
	assert.Error(t, err)
}

func TestScheduleAtReplacesSameID(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, clock.Fixed(now))
	ctx := context.Background()

	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "x", Recipient: 1, At: now.Add(time.Hour), Body: "first"}))
	first := s.entries["x"]
	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "x", Recipient: 1, At: now.Add(2 * time.Hour), Body: "second"}))

	assert.NotSame(t, first, s.entries["x"])
	assert.Len(t, s.cron.Entries(), 1)

	listed, err := s.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "second", listed[0].Body)
}

func TestCancel(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, clock.Fixed(now))
	ctx := context.Background()

	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "x", At: now.Add(time.Hour)}))
	require.NoError(t, s.Cancel(ctx, "x"))
	assert.False(t, s.Armed("x"))
	assert.Empty(t, s.cron.Entries())

	listed, err := s.ListScheduled(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	assert.NoError(t, s.Cancel(ctx, "unknown"))
}

func TestFireDeliversAndMarksSent(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, store := newTestScheduler(t, clock.Fixed(now))
	sender := &fakeSender{}
	s.SetSender(sender)
	ctx := context.Background()

	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "x", Recipient: 7, At: now.Add(time.Minute), Title: "t", Body: "b"}))
	s.fire("x", s.entries["x"])

	require.Equal(t, 1, sender.count())
	assert.Equal(t, delivery{recipient: 7, title: "t", body: "b"}, sender.sent[0])
	assert.False(t, s.Armed("x"))

	stored, err := store.FindByID(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, stored.SentAt)

	listed, err := s.ListScheduled(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestFireIgnoresStaleRegistration(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, clock.Fixed(now))
	sender := &fakeSender{}
	s.SetSender(sender)
	ctx := context.Background()

	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "x", At: now.Add(time.Minute)}))
	stale := s.entries["x"]
	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "x", At: now.Add(time.Hour)}))

	s.fire("x", stale)
	assert.Zero(t, sender.count())
	assert.True(t, s.Armed("x"))
}

func TestFireRecordsFailure(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, clock.Fixed(now))
	s.SetSender(&fakeSender{err: errors.New("chat not found")})
	ctx := context.Background()

	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "x", At: now.Add(time.Minute)}))
	s.fire("x", s.entries["x"])

	listed, err := s.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "chat not found", listed[0].LastError)
}

func TestFireWithoutSender(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, clock.Fixed(now))
	ctx := context.Background()

	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "x", At: now.Add(time.Minute)}))
	s.fire("x", s.entries["x"])

	listed, err := s.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, ErrNoSender.Error(), listed[0].LastError)
}

func TestRestore(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s, store := newTestScheduler(t, clock.Fixed(now))
	ctx := context.Background()

	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "future", At: now.Add(time.Hour)}))
	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "soon", At: now.Add(time.Minute)}))
	require.NoError(t, s.ScheduleAt(ctx, Notification{ID: "failed", At: now.Add(2 * time.Minute)}))
	require.NoError(t, store.MarkFailed(ctx, "failed", errors.New("chat not found")))

	later := now.Add(10 * time.Minute)
	restarted := NewScheduler(store, time.UTC, clock.Fixed(later), zerolog.Nop())
	armed, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, armed)
	assert.True(t, restarted.Armed("future"))
	assert.False(t, restarted.Armed("soon"))

	_, err = store.FindByID(ctx, "soon")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	kept, err := store.FindByID(ctx, "failed")
	require.NoError(t, err)
	assert.Equal(t, "chat not found", kept.LastError)
	assert.False(t, restarted.Armed("failed"))
}

func TestSchedulerFiresOnTime(t *testing.T) {
	s, _ := newTestScheduler(t, clock.System())
	sender := &fakeSender{}
	s.SetSender(sender)
	s.Start()
	t.Cleanup(s.Stop)

	require.NoError(t, s.ScheduleAt(context.Background(), Notification{
		ID:        "live",
		Recipient: 3,
		At:        time.Now().Add(200 * time.Millisecond),
		Body:      "now",
	}))

	assert.Eventually(t, func() bool { return sender.count() == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return !s.Armed("live") }, time.Second, 20*time.Millisecond)
}
