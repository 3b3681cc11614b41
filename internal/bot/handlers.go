package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Fabian-Z77/StudySpace/internal/model"
	"github.com/Fabian-Z77/StudySpace/internal/plan"
	"github.com/Fabian-Z77/StudySpace/internal/service"
)

const helpText = "ℹ️ <b>Comandos</b>\n" +
	"• /newtask · crear una tarea de estudio paso a paso\n" +
	"• /tasks [hoy|semana] · ver tareas y repasos\n" +
	"• /agenda · repasos de hoy\n" +
	"• /complete &lt;id&gt; · marcar un repaso como hecho\n" +
	"• /postpone &lt;id&gt; · posponer su recordatorio 1 hora\n" +
	"• /delete &lt;id&gt; · eliminar una tarea\n" +
	"• /reminders · recordatorios pendientes\n" +
	"• /plans · planes de repetición disponibles\n" +
	"• /categories · tus categorías\n" +
	"• /cancel · cancelar la creación en curso"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "estudiante"
	}
	text := fmt.Sprintf("👋 ¡Hola, %s!\n<b>Te ayudo a repasar con repetición espaciada.</b>\n\n%s", escape(name), helpText)
	return b.sendText(ctx, msg.Chat.ID, text)
}

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendText(ctx, msg.Chat.ID, helpText)
}

func (b *Bot) handlePlans(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendText(ctx, msg.Chat.ID, formatPlans(plan.All()))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	filter := service.FilterAll
	switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
	case "hoy":
		filter = service.FilterToday
	case "semana":
		filter = service.FilterWeek
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user, filter)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User, filter service.Filter) error {
	tasks, err := b.svc.Tasks.ListTasks(ctx, user, filter)
	if err != nil {
		return b.sendError(ctx, chatID, err)
	}
	catNames, err := b.svc.Categories.Names(ctx, user)
	if err != nil {
		catNames = map[uint]string{}
	}

	type categoryGroup struct {
		Name  string
		Tasks []model.Task
	}
	groups := make(map[string]*categoryGroup)
	order := make([]string, 0)
	for _, task := range tasks {
		if task.IsCompleted {
			continue
		}
		key, display := normalizedCategory(task.CategoryID, catNames)
		group, ok := groups[key]
		if !ok {
			group = &categoryGroup{Name: display}
			groups[key] = group
			order = append(order, key)
		}
		group.Tasks = append(group.Tasks, task)
	}

	if len(groups) == 0 {
		return b.sendText(ctx, chatID, "No tienes repasos pendientes. Crea uno con /newtask.")
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i] == noCategoryKey {
			return false
		}
		if order[j] == noCategoryKey {
			return true
		}
		return strings.Compare(groups[order[i]].Name, groups[order[j]].Name) < 0
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Tareas y repasos</b>\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, key := range order {
		section := groups[key]
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", section.Name))
		for _, task := range section.Tasks {
			builder.WriteString(formatTask(task, catNames))
			buttons = append(buttons, taskButtons(task.ID, task.Title, task.ReminderID != ""))
		}
		builder.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	return b.send(ctx, msg)
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(ctx, msg, "/complete 12")
	if !ok {
		return err
	}
	return b.completeTask(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(ctx, msg, "/delete 12")
	if !ok {
		return err
	}
	return b.askConfirmation(ctx, msg.Chat.ID, msg.From, confirmationRequest{taskID: taskID, action: actionDelete})
}

func (b *Bot) handlePostpone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(ctx, msg, "/postpone 12")
	if !ok {
		return err
	}
	return b.postponeTask(ctx, msg.Chat.ID, msg.From, taskID)
}

// commandTaskID parses the numeric argument; ok is false when a reply was already sent.
func (b *Bot) commandTaskID(ctx context.Context, msg *tgbotapi.Message, example string) (uint, bool, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return 0, false, b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("Indica el ID de la tarea: %s", example))
	}
	taskID, err := parseTaskID(args)
	if err != nil {
		return 0, false, b.sendText(ctx, msg.Chat.ID, "El ID de la tarea debe ser un número.")
	}
	return taskID, true, nil
}

func (b *Bot) handleReminders(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	views, err := b.svc.Tasks.Reminders(ctx, user)
	if err != nil {
		return b.sendError(ctx, msg.Chat.ID, err)
	}
	return b.sendText(ctx, msg.Chat.ID, formatReminders(views))
}

func (b *Bot) handleAgenda(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	agenda, err := b.svc.Agenda.DailyAgenda(ctx, user)
	if err != nil {
		return b.sendError(ctx, msg.Chat.ID, err)
	}
	return b.sendText(ctx, msg.Chat.ID, formatDigest(service.AgendaTitle, agenda.Text))
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	categories, err := b.svc.Categories.List(ctx, user)
	if err != nil {
		return b.sendError(ctx, msg.Chat.ID, err)
	}
	if len(categories) == 0 {
		return b.sendText(ctx, msg.Chat.ID, "Todavía no tienes categorías. Se crean al agregar una tarea.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Categorías</b>\n")
	for _, cat := range categories {
		builder.WriteString(fmt.Sprintf("• %s\n", categoryLabel(cat.Name)))
	}
	return b.sendText(ctx, msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.request(ctx, tgbotapi.NewCallback(cb.ID, ""))

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Debug().Int64("user", cb.From.ID).Str("data", data).Msg("callback")

	switch {
	case strings.HasPrefix(data, cbPlanPrefix):
		return b.choosePlan(ctx, chatID, cb.From, strings.TrimPrefix(data, cbPlanPrefix))
	case data == cbCreate:
		return b.finishTaskCreation(ctx, chatID, cb.From)
	case data == cbReplan:
		return b.replan(ctx, chatID, cb.From)
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseTaskID(strings.TrimPrefix(data, cbCompletePrefix))
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, confirmationRequest{taskID: taskID, action: actionComplete})
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, confirmationRequest{taskID: taskID, action: actionDelete})
	case strings.HasPrefix(data, cbPostponePrefix):
		taskID, err := parseTaskID(strings.TrimPrefix(data, cbPostponePrefix))
		if err != nil {
			return nil
		}
		return b.postponeTask(ctx, chatID, cb.From, taskID)
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, req confirmationRequest) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.GetTask(ctx, user, req.taskID)
	if err != nil {
		return b.sendError(ctx, chatID, err)
	}
	if req.action == actionComplete && task.IsCompleted {
		return b.sendText(ctx, chatID, "Ese repaso ya está completado.")
	}

	var text string
	if req.action == actionDelete {
		text = fmt.Sprintf("¿Eliminar la tarea «%s» (#%d)?", escape(normalizeTitle(task.Title)), task.ID)
	} else {
		text = fmt.Sprintf("¿Marcar «%s» (#%d) como completada?", escape(normalizeTitle(task.Title)), task.ID)
	}
	b.setConfirmation(from.ID, req)
	return b.sendWithReplyMarkup(ctx, chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTask(ctx, msg.Chat.ID, msg.From, req.taskID)
		}
		return b.completeTask(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(ctx, msg.Chat.ID, "Operación cancelada.")
	default:
		return b.sendWithReplyMarkup(ctx, msg.Chat.ID, "Confirma o vuelve atrás.", confirmKeyboard())
	}
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.CompleteTask(ctx, user, taskID)
	if err != nil {
		return b.sendError(ctx, chatID, err)
	}
	b.log.Info().Uint("task", task.ID).Uint("user", user.ID).Msg("task completed")
	return b.sendText(ctx, chatID, fmt.Sprintf("✅ «%s» completada.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendError(ctx, chatID, err)
	}
	if err := b.svc.Tasks.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendError(ctx, chatID, err)
	}
	b.log.Info().Uint("task", task.ID).Uint("user", user.ID).Msg("task deleted")
	return b.sendText(ctx, chatID, fmt.Sprintf("🗑 Tarea «%s» eliminada.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) postponeTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.PostponeTask(ctx, user, taskID)
	if err != nil {
		return b.sendError(ctx, chatID, err)
	}
	return b.sendText(ctx, chatID, fmt.Sprintf("⏰ Recordatorio de «%s» pospuesto %d minutos.",
		escape(normalizeTitle(task.Title)), int(service.PostponeDelay.Minutes())))
}
