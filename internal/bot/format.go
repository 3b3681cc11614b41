package bot

import (
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/Fabian-Z77/StudySpace/internal/datekey"
	"github.com/Fabian-Z77/StudySpace/internal/model"
	"github.com/Fabian-Z77/StudySpace/internal/plan"
	"github.com/Fabian-Z77/StudySpace/internal/schedule"
	"github.com/Fabian-Z77/StudySpace/internal/service"
)

const (
	iconOverdue   = "⚠️"
	iconDone      = "✅"
	iconHigh      = "🔴"
	iconMedium    = "🟡"
	iconLow       = "🟢"
	noCategory    = "Sin categoría"
	noCategoryKey = "__no_category__"
)

var errBadAnchor = errors.New("unrecognized date")

// parseAnchor reads the start date of a new task. Skip words mean now; a bare date keeps
// the current time of day.
func parseAnchor(dates *datekey.Normalizer, text string) (time.Time, error) {
	value := strings.TrimSpace(strings.ToLower(text))
	current := dates.Now()
	switch value {
	case "", "ahora", "hoy":
		return current, nil
	case "mañana", "manana":
		return current.AddDate(0, 0, 1), nil
	}
	if isSkipInput(value) {
		return current, nil
	}

	if datekey.Matches(value) {
		day, ok := datekey.Key(value).Time(dates.Location())
		if !ok || !datekey.Key(value).Valid() {
			return time.Time{}, errBadAnchor
		}
		return time.Date(day.Year(), day.Month(), day.Day(), current.Hour(), current.Minute(), 0, 0, dates.Location()), nil
	}

	t, ok := dates.Instant(text)
	if !ok {
		return time.Time{}, errBadAnchor
	}
	return t.In(dates.Location()), nil
}

func formatTask(task model.Task, catNames map[uint]string) string {
	var b strings.Builder

	icon := priorityIcon(task.DaysRemaining)
	switch {
	case task.IsCompleted:
		icon = iconDone
	case task.Overdue:
		icon = iconOverdue
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, escape(normalizeTitle(task.Title))))
	if task.CategoryID != nil {
		if name := strings.TrimSpace(catNames[*task.CategoryID]); name != "" {
			b.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(name)))
		}
	}
	b.WriteByte('\n')

	b.WriteString(fmt.Sprintf("   📅 %s %s · %s\n", task.Weekday, task.CurrentDate, countdown(task)))
	if task.NextReviewDate != nil {
		b.WriteString(fmt.Sprintf("   ⏭ siguiente repaso: %s (%s)\n", *task.NextReviewDate, storedGap(task)))
	}
	if !task.IsRepetition && task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	return b.String()
}

func countdown(task model.Task) string {
	switch {
	case task.IsCompleted:
		return "completada"
	case task.Overdue:
		return "<b>atrasada</b>"
	case task.DaysRemaining <= 1:
		return "hoy"
	default:
		return fmt.Sprintf("%d días", task.DaysRemaining)
	}
}

// storedGap renders the persisted distance to the next review in its own unit.
func storedGap(task model.Task) string {
	switch task.TimeUnit {
	case model.UnitMinutes:
		return fmt.Sprintf("%d min", task.MinutesRemaining)
	case model.UnitHours:
		return fmt.Sprintf("%d h", int(math.Floor(float64(task.MinutesRemaining)/60+0.5)))
	default:
		return fmt.Sprintf("%d días", task.DaysRemaining)
	}
}

func priorityIcon(daysRemaining int) string {
	switch service.Priority(daysRemaining) {
	case "alta":
		return iconHigh
	case "media":
		return iconMedium
	default:
		return iconLow
	}
}

func formatPlans(plans []plan.Plan) string {
	var b strings.Builder
	b.WriteString("🧠 <b>Planes de repetición</b>\n\n")
	for _, p := range plans {
		b.WriteString(fmt.Sprintf("• <b>%s</b> <code>%s</code>\n", escape(p.Name), p.Key))
		b.WriteString(fmt.Sprintf("   %s\n", escape(p.Description)))
		b.WriteString(fmt.Sprintf("   ⏱ %s\n", p.Summary()))
	}
	return strings.TrimSpace(b.String())
}

func formatPreview(p plan.Plan, anchor time.Time, items []schedule.PreviewItem) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📆 <b>%s</b>\n", escape(p.Name)))
	b.WriteString(fmt.Sprintf("Inicio: %s %s\n\n", datekey.WeekdayOf(datekey.FromTime(anchor)), anchor.Format("02/01/2006 15:04")))
	if len(items) == 0 {
		b.WriteString("Sin repasos programados.\n")
	}
	for _, item := range items {
		target := item.Entry.Target
		b.WriteString(fmt.Sprintf("%d. %s %s · +%s\n",
			item.Entry.Sequence,
			datekey.WeekdayOf(item.Entry.Key()),
			target.Format("02/01 15:04"),
			item.Distance.String(),
		))
	}
	return strings.TrimSpace(b.String())
}

func formatCreated(res *service.CreateResult) string {
	var b strings.Builder
	b.WriteString("✅ <b>Tarea guardada</b>\n")
	b.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", res.Main.ID))
	b.WriteString(fmt.Sprintf("• <b>Título:</b> %s\n", escape(normalizeTitle(res.Main.Title))))
	if res.Main.Description != "" {
		b.WriteString(fmt.Sprintf("• <b>Descripción:</b> %s\n", escape(res.Main.Description)))
	}
	b.WriteString(fmt.Sprintf("• <b>Fecha:</b> %s %s\n", res.Main.Weekday, res.Main.CurrentDate))
	b.WriteString(fmt.Sprintf("• <b>Plan:</b> %s\n", escape(res.Plan.Name)))
	if len(res.Repetitions) > 0 {
		b.WriteString(fmt.Sprintf("• <b>Repasos:</b> %d (recordatorios: %d)\n", len(res.Repetitions), len(res.Dispatch.Scheduled)))
	}
	return strings.TrimSpace(b.String())
}

// dispatchNotice is shown after a successful creation when some reminders are missing.
func dispatchNotice(d service.DispatchResult) string {
	var parts []string
	if d.Warning != nil {
		parts = append(parts, "⚠️ Algunos recordatorios no se pudieron programar. La tarea quedó guardada igualmente.")
	}
	if n := len(d.Skipped); n > 0 {
		parts = append(parts, fmt.Sprintf("ℹ️ %d repaso(s) ya pasaron o están demasiado cerca y no tendrán recordatorio.", n))
	}
	return strings.Join(parts, "\n")
}

func formatReminders(views []service.ScheduledView) string {
	if len(views) == 0 {
		return "🔕 No tienes recordatorios pendientes."
	}
	var b strings.Builder
	b.WriteString("🔔 <b>Recordatorios pendientes</b>\n")
	for _, v := range views {
		b.WriteString(fmt.Sprintf("• %s · %s", v.At.Format("02/01 15:04"), escape(v.Body)))
		if v.LastError != "" {
			b.WriteString(" ⚠️")
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func formatDelivery(title, body string) string {
	return formatDigest(title, escape(body))
}

func formatDigest(title, html string) string {
	return fmt.Sprintf("<b>%s</b>\n%s", escape(title), html)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func normalizedCategory(categoryID *uint, catNames map[uint]string) (string, string) {
	if categoryID == nil {
		return noCategoryKey, categoryLabel(noCategory)
	}
	if name, ok := catNames[*categoryID]; ok {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return noCategoryKey, categoryLabel(noCategory)
		}
		return strings.ToLower(trimmed), categoryLabel(trimmed)
	}
	return noCategoryKey, categoryLabel(noCategory)
}

func categoryLabel(name string) string {
	base := strings.TrimSpace(name)
	var icon string
	switch strings.ToLower(base) {
	case "matemáticas", "matematicas":
		icon = "📐"
	case "idiomas":
		icon = "🗣"
	case "programación", "programacion":
		icon = "💻"
	case "ciencias":
		icon = "🔬"
	case strings.ToLower(noCategory):
		icon = "📁"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(normalizeTitle(base)))
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "omitir" || value == "saltar"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirmar" || value == "sí" || value == "si"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancelar"
}

func escape(s string) string {
	return html.EscapeString(s)
}
