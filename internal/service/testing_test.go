package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Fabian-Z77/StudySpace/internal/clock"
	"github.com/Fabian-Z77/StudySpace/internal/datekey"
	"github.com/Fabian-Z77/StudySpace/internal/model"
	"github.com/Fabian-Z77/StudySpace/internal/notify"
	"github.com/Fabian-Z77/StudySpace/internal/repository"
)

type fakeNotifier struct {
	mu        sync.Mutex
	scheduled map[string]notify.Notification
	cancelled []string
	err       error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{scheduled: make(map[string]notify.Notification)}
}

func (f *fakeNotifier) ScheduleAt(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.scheduled[n.ID] = n
	return nil
}

func (f *fakeNotifier) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, id)
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeNotifier) ListScheduled(context.Context) ([]notify.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.Notification, 0, len(f.scheduled))
	for _, n := range f.scheduled {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func (f *fakeNotifier) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.scheduled))
	for id := range f.scheduled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type recordingSender struct {
	mu    sync.Mutex
	sent  map[int64]string
	title string
}

func (r *recordingSender) DeliverDigest(_ context.Context, recipient int64, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[int64]string)
	}
	r.sent[recipient] = body
	r.title = title
	return nil
}

type testEnv struct {
	now        time.Time
	loc        *time.Location
	dates      *datekey.Normalizer
	notifier   *fakeNotifier
	reminders  *ReminderService
	tasks      *TaskService
	categories *CategoryService
	agenda     *AgendaService
	taskRepo   *repository.TaskRepository
	userRepo   *repository.UserRepository
	catRepo    *repository.CategoryRepository
	user       *model.User
}

func santiago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)
	return loc
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:service_%s?mode=memory&cache=shared", name), zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	loc := now.Location()
	c := clock.Fixed(now)
	env := &testEnv{
		now:      now,
		loc:      loc,
		dates:    datekey.NewNormalizerIn(loc, c),
		notifier: newFakeNotifier(),
		taskRepo: repository.NewTaskRepository(db),
		userRepo: repository.NewUserRepository(db),
		catRepo:  repository.NewCategoryRepository(db),
	}
	env.reminders = NewReminderService(env.notifier, loc, c, 9, zerolog.Nop())
	env.tasks = NewTaskService(env.taskRepo, env.catRepo, env.userRepo, env.reminders, env.dates, DefaultRetentionDays, zerolog.Nop())
	env.categories = NewCategoryService(env.catRepo)
	env.agenda = NewAgendaService(env.taskRepo, env.categories, env.userRepo, env.dates, zerolog.Nop())

	env.user, err = env.userRepo.UpsertFromTelegram(context.Background(), 1001, "Ana", "", "ana")
	require.NoError(t, err)
	return env
}

func (e *testEnv) addTask(t *testing.T, user *model.User, title, day string) *model.Task {
	t.Helper()
	task := &model.Task{UserID: user.ID, Title: title, CurrentDate: day, TimeUnit: model.UnitDays}
	require.NoError(t, e.taskRepo.Create(context.Background(), task))
	return task
}
