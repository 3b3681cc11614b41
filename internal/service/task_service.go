package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Fabian-Z77/StudySpace/internal/datekey"
	"github.com/Fabian-Z77/StudySpace/internal/model"
	"github.com/Fabian-Z77/StudySpace/internal/plan"
	"github.com/Fabian-Z77/StudySpace/internal/schedule"
)

// ErrInvalidInput marks user input that cannot be turned into a task.
var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultRetentionDays = 90
	maxTitleLen          = 200
	maxDescriptionLen    = 2000
)

// TaskStore is the persistent task store. *repository.TaskRepository implements it.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	ListByUser(ctx context.Context, userID uint) ([]model.Task, error)
	ListDueOn(ctx context.Context, userID uint, day string) ([]model.Task, error)
	FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error)
	Update(ctx context.Context, userID, taskID uint, fields map[string]any) error
	MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) error
	Delete(ctx context.Context, userID, taskID uint) error
	DeleteOnOrBefore(ctx context.Context, userID uint, cutoff string) (int64, error)
}

type CategoryStore interface {
	GetOrCreate(ctx context.Context, userID uint, name string) (*model.Category, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Category, error)
}

type UserLister interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

// TaskInput represents data required to create a study task.
type TaskInput struct {
	Title       string
	Description string
	Category    string
	Anchor      time.Time
	PlanKey     string
}

// TaskUpdate holds the editable fields; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Date        *time.Time
	Position    *int64
}

// CreateResult is everything CreateStudyTask produced.
type CreateResult struct {
	Main        *model.Task
	Repetitions []model.Task
	Plan        plan.Plan
	Entries     []schedule.Entry
	Dispatch    DispatchResult
}

// Filter selects tasks by their live countdown.
type Filter int

const (
	FilterAll Filter = iota
	FilterToday
	FilterWeek
)

// TaskService wraps task-related business logic.
type TaskService struct {
	tasks         TaskStore
	categories    CategoryStore
	users         UserLister
	reminders     *ReminderService
	dates         *datekey.Normalizer
	retentionDays int
	log           zerolog.Logger
}

func NewTaskService(tasks TaskStore, categories CategoryStore, users UserLister, reminders *ReminderService, dates *datekey.Normalizer, retentionDays int, log zerolog.Logger) *TaskService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &TaskService{
		tasks:         tasks,
		categories:    categories,
		users:         users,
		reminders:     reminders,
		dates:         dates,
		retentionDays: retentionDays,
		log:           log.With().Str("component", "tasks").Logger(),
	}
}

// Preview expands planKey from anchor without persisting anything.
func (s *TaskService) Preview(planKey string, anchor time.Time) (plan.Plan, []schedule.PreviewItem, error) {
	p, err := plan.Lookup(planKey)
	if err != nil {
		return plan.Plan{}, nil, err
	}
	anchor = s.anchor(anchor)
	return p, schedule.Preview(anchor, schedule.Generate(anchor, p)), nil
}

// CreateStudyTask stores the task and one record per review of its plan, then schedules
// the reminders. A reminder failure is reported in Dispatch.Warning and does not undo the
// stored records; a storage failure is returned as the error.
func (s *TaskService) CreateStudyTask(ctx context.Context, user *model.User, input TaskInput) (*CreateResult, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case utf8.RuneCountInString(title) > maxTitleLen:
		return nil, fmt.Errorf("%w: title is longer than %d characters", ErrInvalidInput, maxTitleLen)
	case utf8.RuneCountInString(description) > maxDescriptionLen:
		return nil, fmt.Errorf("%w: description is longer than %d characters", ErrInvalidInput, maxDescriptionLen)
	}

	p, err := plan.Lookup(input.PlanKey)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	anchor := s.anchor(input.Anchor)
	entries := schedule.Generate(anchor, p)

	categoryID, err := s.categoryID(ctx, user.ID, input.Category)
	if err != nil {
		return nil, err
	}

	main := s.mainRecord(user, title, description, categoryID, anchor, p, entries)
	if err := s.tasks.Create(ctx, main); err != nil {
		return nil, err
	}

	anchorKey := datekey.FromTime(anchor)
	reps := make([]model.Task, len(entries))
	for i := range entries {
		reps[i] = s.repetitionRecord(user, main, title, description, anchorKey, p, entries, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range reps {
		g.Go(func() error {
			return s.tasks.Create(gctx, &reps[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("create repetitions: %w", err)
	}

	dispatch := s.reminders.ScheduleReminders(ctx, user.TelegramID, title, entries, p.Name)
	if dispatch.Warning != nil {
		s.log.Warn().Err(dispatch.Warning).Uint("task", main.ID).Msg("some reminders were not scheduled")
	}
	s.log.Info().
		Uint("task", main.ID).
		Str("plan", p.Key).
		Int("repetitions", len(reps)).
		Int("reminders", len(dispatch.Scheduled)).
		Msg("study task created")

	return &CreateResult{
		Main:        main,
		Repetitions: reps,
		Plan:        p,
		Entries:     entries,
		Dispatch:    dispatch,
	}, nil
}

func (s *TaskService) mainRecord(user *model.User, title, description string, categoryID *uint, anchor time.Time, p plan.Plan, entries []schedule.Entry) *model.Task {
	key := datekey.FromTime(anchor)
	reviewAt := anchor
	task := &model.Task{
		UserID:      user.ID,
		CategoryID:  categoryID,
		Title:       title,
		Description: description,
		CurrentDate: key.String(),
		Weekday:     datekey.WeekdayOf(key),
		TimeUnit:    model.UnitDays,
		PlanKey:     p.Key,
		ReviewAt:    &reviewAt,
		Position:    anchor.UnixMilli(),
	}
	if len(entries) > 0 {
		applyDistance(task, schedule.Persisted(s.dates, anchor, entries[0].Target))
		next := entries[0].Key().String()
		task.NextReviewDate = &next
	}
	return task
}

func (s *TaskService) repetitionRecord(user *model.User, main *model.Task, title, description string, anchorKey datekey.Key, p plan.Plan, entries []schedule.Entry, i int) model.Task {
	entry := entries[i]
	key := entry.Key()
	reviewAt := entry.Target
	task := model.Task{
		UserID:          user.ID,
		CategoryID:      main.CategoryID,
		ParentID:        &main.ID,
		Title:           ReminderBody(entry.Sequence, title),
		Description:     fmt.Sprintf("Repetición %d de: %s\n\nTarea original: %s", entry.Sequence, description, anchorKey),
		CurrentDate:     key.String(),
		Weekday:         datekey.WeekdayOf(key),
		IsRepetition:    true,
		RepetitionIndex: entry.Sequence,
		PlanKey:         p.Key,
		ReviewAt:        &reviewAt,
		ReminderID:      ReminderID(user.TelegramID, title, entry.Sequence, entry.Target),
		Position:        entry.Target.UnixMilli(),
	}
	applyDistance(&task, schedule.Gap(s.dates, entries, i))
	if i+1 < len(entries) {
		next := entries[i+1].Key().String()
		task.NextReviewDate = &next
	}
	return task
}

// applyDistance stores d in the one countdown field its unit selects.
func applyDistance(task *model.Task, d schedule.Distance) {
	task.TimeUnit = string(d.Unit)
	task.DaysRemaining, task.MinutesRemaining = 0, 0
	if d.Unit == schedule.Days {
		task.DaysRemaining = d.Int()
		return
	}
	task.MinutesRemaining = d.Minutes
}

// ListTasks loads the user's tasks and recomputes their live fields. FilterAll and
// FilterWeek leave out overdue tasks; results are ordered by days remaining, then by
// stored position.
func (s *TaskService) ListTasks(ctx context.Context, user *model.User, filter Filter) ([]model.Task, error) {
	tasks, err := s.tasks.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	today := s.dates.Today().String()
	out := tasks[:0]
	for _, task := range tasks {
		s.refresh(&task)
		keep := false
		switch filter {
		case FilterToday:
			keep = task.CurrentDate == today
		case FilterWeek:
			keep = !task.Overdue && task.DaysRemaining <= 8
		default:
			keep = !task.Overdue
		}
		if keep {
			out = append(out, task)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysRemaining < out[j].DaysRemaining
	})
	return out, nil
}

// GetTask returns one task with its live fields recomputed.
func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	s.refresh(task)
	return task, nil
}

// refresh normalizes the stored date and recomputes the countdown fields. DaysRemaining
// becomes the live countdown for every unit; MinutesRemaining and TimeUnit are untouched.
func (s *TaskService) refresh(task *model.Task) {
	key := s.dates.Key(task.CurrentDate)
	task.CurrentDate = key.String()
	task.Weekday = datekey.WeekdayOf(key)

	days := s.dates.DaysUntil(key)
	task.Overdue = days < 1 && !task.IsCompleted
	if days < 0 {
		days = 0
	}
	task.DaysRemaining = days
	task.MinutesSince = s.dates.MinutesSince(key.String())
}

// UpdateTask applies a partial edit. Changing the date re-derives the weekday.
func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID uint, update TaskUpdate) (*model.Task, error) {
	fields := make(map[string]any)
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		fields["title"] = title
	}
	if update.Description != nil {
		fields["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Date != nil {
		key := s.dates.Key(*update.Date)
		fields["task_date"] = key.String()
		fields["weekday"] = datekey.WeekdayOf(key)
	}
	if update.Position != nil {
		fields["position"] = *update.Position
	}
	if len(fields) == 0 {
		return s.GetTask(ctx, user, taskID)
	}

	if err := s.tasks.Update(ctx, user.ID, taskID, fields); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, user, taskID)
}

// CompleteTask marks a task as done and cancels its pending reminder.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.MarkCompleted(ctx, task, s.dates.Now()); err != nil {
		return nil, err
	}
	s.cancelReminder(ctx, task)
	return task, nil
}

// DeleteTask removes a task and cancels its pending reminder.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, user.ID, taskID); err != nil {
		return err
	}
	s.cancelReminder(ctx, task)
	return nil
}

// PostponeTask moves the task's reminder one hour from now.
func (s *TaskService) PostponeTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	if task.ReminderID == "" || task.IsCompleted {
		return nil, fmt.Errorf("%w: task %d has no pending reminder", ErrInvalidInput, taskID)
	}

	label := task.Title
	if task.ParentID != nil {
		if parent, err := s.tasks.FindByID(ctx, user.ID, *task.ParentID); err == nil {
			label = parent.Title
		}
	}

	id, err := s.reminders.Postpone(ctx, user.TelegramID, task.ReminderID, label, task.RepetitionIndex)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Update(ctx, user.ID, taskID, map[string]any{"reminder_id": id}); err != nil {
		return nil, err
	}
	task.ReminderID = id
	return task, nil
}

// PurgeExpired deletes the user's tasks dated retentionDays or more days ago.
func (s *TaskService) PurgeExpired(ctx context.Context, user *model.User) (int64, error) {
	cutoff := s.dates.Today().AddDays(-s.retentionDays)
	n, err := s.tasks.DeleteOnOrBefore(ctx, user.ID, cutoff.String())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Uint("user", user.ID).Int64("deleted", n).Str("cutoff", cutoff.String()).Msg("old tasks purged")
	}
	return n, nil
}

// PurgeAll runs PurgeExpired for every user; a failing user does not stop the rest.
func (s *TaskService) PurgeAll(ctx context.Context) (int64, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	var (
		total int64
		errs  []error
	)
	for i := range users {
		n, err := s.PurgeExpired(ctx, &users[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", users[i].ID, err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// Reminders lists the user's pending reminders.
func (s *TaskService) Reminders(ctx context.Context, user *model.User) ([]ScheduledView, error) {
	pending, err := s.reminders.ListScheduled(ctx, user.TelegramID)
	if err != nil {
		return nil, err
	}
	out := make([]ScheduledView, 0, len(pending))
	for _, n := range pending {
		out = append(out, ScheduledView{ID: n.ID, At: n.At.In(s.dates.Location()), Body: n.Body, LastError: n.LastError})
	}
	return out, nil
}

// ScheduledView is a pending reminder as shown to its owner.
type ScheduledView struct {
	ID        string
	At        time.Time
	Body      string
	LastError string
}

func (s *TaskService) cancelReminder(ctx context.Context, task *model.Task) {
	if task.ReminderID == "" {
		return
	}
	if err := s.reminders.CancelReminders(ctx, task.ReminderID); err != nil {
		s.log.Warn().Err(err).Uint("task", task.ID).Str("reminder", task.ReminderID).Msg("cancel reminder")
	}
}

func (s *TaskService) categoryID(ctx context.Context, userID uint, name string) (*uint, error) {
	category, err := s.categories.GetOrCreate(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, nil
	}
	return &category.ID, nil
}

func (s *TaskService) anchor(t time.Time) time.Time {
	if t.IsZero() {
		return s.dates.Now()
	}
	return t.In(s.dates.Location())
}

// Priority grades a live countdown: alta under 3 days, media under 5, baja otherwise.
func Priority(daysRemaining int) string {
	switch {
	case daysRemaining < 3:
		return "alta"
	case daysRemaining < 5:
		return "media"
	default:
		return "baja"
	}
}
