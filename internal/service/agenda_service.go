package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Fabian-Z77/StudySpace/internal/datekey"
	"github.com/Fabian-Z77/StudySpace/internal/model"
)

const (
	AgendaTitle  = "📋 Agenda de repasos"
	upcomingDays = 7
)

// DigestSender delivers an already rendered HTML digest.
type DigestSender interface {
	DeliverDigest(ctx context.Context, recipient int64, title, html string) error
}

// AgendaService builds human-readable digests of the reviews due today.
type AgendaService struct {
	tasks      TaskStore
	categories *CategoryService
	users      UserLister
	dates      *datekey.Normalizer
	log        zerolog.Logger
}

func NewAgendaService(tasks TaskStore, categories *CategoryService, users UserLister, dates *datekey.Normalizer, log zerolog.Logger) *AgendaService {
	return &AgendaService{
		tasks:      tasks,
		categories: categories,
		users:      users,
		dates:      dates,
		log:        log.With().Str("component", "agenda").Logger(),
	}
}

// Agenda is the digest for one user and day.
type Agenda struct {
	Day      datekey.Key
	Due      []model.Task
	Upcoming int
	Text     string
}

// DailyAgenda lists the user's open reviews for today and counts those of the next week.
func (s *AgendaService) DailyAgenda(ctx context.Context, user *model.User) (*Agenda, error) {
	today := s.dates.Today()
	due, err := s.tasks.ListDueOn(ctx, user.ID, today.String())
	if err != nil {
		return nil, err
	}

	all, err := s.tasks.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	upcoming := 0
	for _, task := range all {
		if task.IsCompleted {
			continue
		}
		days := datekey.KeyDaysBetween(today, s.dates.Key(task.CurrentDate))
		if days > 1 && days <= upcomingDays+1 {
			upcoming++
		}
	}

	names, err := s.categories.Names(ctx, user)
	if err != nil {
		return nil, err
	}

	agenda := &Agenda{Day: today, Due: due, Upcoming: upcoming}
	agenda.Text = s.render(agenda, names)
	return agenda, nil
}

func (s *AgendaService) render(agenda *Agenda, names map[uint]string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 %s %s\n\n", datekey.WeekdayOf(agenda.Day), s.displayDate(agenda.Day)))

	builder.WriteString("🔥 <b>Repasos de hoy</b>\n")
	if len(agenda.Due) == 0 {
		builder.WriteString("· no hay repasos para hoy\n")
	} else {
		for _, task := range agenda.Due {
			builder.WriteString(s.formatDue(task, names))
		}
	}

	builder.WriteString(fmt.Sprintf("\n⏳ Próximos %d días: %d repasos\n", upcomingDays, agenda.Upcoming))
	return strings.TrimSpace(builder.String())
}

func (s *AgendaService) formatDue(task model.Task, names map[uint]string) string {
	var sb strings.Builder

	sb.WriteString("📚 ")
	if task.ReviewAt != nil {
		sb.WriteString(task.ReviewAt.In(s.dates.Location()).Format("15:04") + " ")
	}
	sb.WriteString(html.EscapeString(strings.TrimSpace(task.Title)))

	if task.CategoryID != nil {
		if name := strings.TrimSpace(names[*task.CategoryID]); name != "" {
			sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
		}
	}
	sb.WriteString(fmt.Sprintf(" <code>#%d</code>", task.ID))

	if task.NextReviewDate != nil {
		sb.WriteString(fmt.Sprintf("\n   ⏭ siguiente repaso: %s", *task.NextReviewDate))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func (s *AgendaService) displayDate(k datekey.Key) string {
	t, ok := k.Time(s.dates.Location())
	if !ok {
		return k.String()
	}
	return t.Format("02/01/2006")
}

// SendAll delivers today's agenda to every user that has reviews due. A failing user
// does not stop the rest.
func (s *AgendaService) SendAll(ctx context.Context, sender DigestSender) (int, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	var (
		sent int
		errs []error
	)
	for i := range users {
		user := &users[i]
		agenda, err := s.DailyAgenda(ctx, user)
		if err != nil {
			errs = append(errs, fmt.Errorf("agenda for user %d: %w", user.ID, err))
			continue
		}
		if len(agenda.Due) == 0 {
			continue
		}
		if err := sender.DeliverDigest(ctx, user.TelegramID, AgendaTitle, agenda.Text); err != nil {
			errs = append(errs, fmt.Errorf("deliver agenda to user %d: %w", user.ID, err))
			continue
		}
		sent++
	}
	s.log.Info().Int("sent", sent).Int("users", len(users)).Msg("daily agenda delivered")
	return sent, errors.Join(errs...)
}
