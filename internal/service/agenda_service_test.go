package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fabian-Z77/StudySpace/internal/plan"
)

func TestDailyAgenda(t *testing.T) {
	loc := santiago(t)
	env := newTestEnv(t, time.Date(2025, 6, 2, 7, 0, 0, 0, loc))
	ctx := context.Background()

	_, err := env.tasks.CreateStudyTask(ctx, env.user, TaskInput{
		Title:    "Álgebra <1>",
		Category: "Matemáticas",
		Anchor:   time.Date(2025, 6, 1, 9, 0, 0, 0, loc),
		PlanKey:  plan.Leitner3,
	})
	require.NoError(t, err)

	agenda, err := env.agenda.DailyAgenda(ctx, env.user)
	require.NoError(t, err)

	assert.Equal(t, "2025-06-02", agenda.Day.String())
	require.Len(t, agenda.Due, 1)
	assert.Equal(t, 1, agenda.Due[0].RepetitionIndex)
	assert.Equal(t, 2, agenda.Upcoming)

	assert.Contains(t, agenda.Text, "lunes 02/06/2025")
	assert.Contains(t, agenda.Text, "09:00 Repaso 1: Álgebra &lt;1&gt;")
	assert.Contains(t, agenda.Text, "<i>(Matemáticas)</i>")
	assert.Contains(t, agenda.Text, "siguiente repaso: 2025-06-04")
	assert.Contains(t, agenda.Text, "Próximos 7 días: 2 repasos")
}

func TestDailyAgendaEmpty(t *testing.T) {
	env := newTestEnv(t, time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC))

	agenda, err := env.agenda.DailyAgenda(context.Background(), env.user)
	require.NoError(t, err)
	assert.Empty(t, agenda.Due)
	assert.Contains(t, agenda.Text, "no hay repasos para hoy")
}

func TestSendAllSkipsUsersWithoutReviews(t *testing.T) {
	env := newTestEnv(t, time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC))
	ctx := context.Background()

	idle, err := env.userRepo.UpsertFromTelegram(ctx, 2002, "Luis", "", "")
	require.NoError(t, err)
	env.addTask(t, idle, "mañana", "2025-06-03")
	env.addTask(t, env.user, "hoy", "2025-06-02")

	sender := &recordingSender{}
	sent, err := env.agenda.SendAll(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, AgendaTitle, sender.title)
	assert.Contains(t, sender.sent[1001], "hoy")
	assert.NotContains(t, sender.sent, int64(2002))
}
