package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Fabian-Z77/StudySpace/internal/plan"
	"github.com/Fabian-Z77/StudySpace/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stageAnchor
	stagePlan
	stageConfirm
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(ctx, msg.Chat.ID, "🆕 Nueva tarea de estudio.\n<b>Paso 1:</b> ¿qué vas a estudiar?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(ctx, msg.Chat.ID, "El título no puede estar vacío.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(ctx, msg.Chat.ID, "✏️ <b>Paso 2:</b> agrega una descripción breve (o «Omitir»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.askCategory(ctx, msg)
	case stageCategory:
		if !isSkipInput(text) {
			state.input.Category = text
		}
		state.stage = stageAnchor
		return b.sendWithReplyMarkup(ctx, msg.Chat.ID,
			"📅 <b>Paso 4:</b> ¿cuándo empiezas? Envía <code>2025-06-01</code>, <code>2025-06-01 18:30</code>, «mañana» o pulsa «Ahora».",
			anchorKeyboard())
	case stageAnchor:
		if strings.EqualFold(text, btnNow) {
			text = "ahora"
		}
		anchor, err := parseAnchor(b.svc.Dates, text)
		if err != nil {
			return b.sendWithReplyMarkup(ctx, msg.Chat.ID, "No reconozco la fecha. Usa el formato <code>2025-06-01 18:30</code> o «Ahora».", anchorKeyboard())
		}
		state.input.Anchor = anchor
		state.stage = stagePlan
		return b.askPlan(ctx, msg.Chat.ID)
	case stagePlan:
		return b.choosePlan(ctx, msg.Chat.ID, msg.From, text)
	case stageConfirm:
		return b.sendWithReplyMarkup(ctx, msg.Chat.ID, "Pulsa «Crear» o «Otro plan».", createKeyboard())
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(ctx, msg.Chat.ID, "Conversación reiniciada. Vuelve a intentarlo con /newtask.")
	}
}

func (b *Bot) askCategory(ctx context.Context, msg *tgbotapi.Message) error {
	var existing []string
	if user, err := b.ensureUser(ctx, msg.From); err == nil {
		if categories, err := b.svc.Categories.List(ctx, user); err == nil {
			for _, cat := range categories {
				existing = append(existing, cat.Name)
			}
		}
	}
	return b.sendWithReplyMarkup(ctx, msg.Chat.ID, "🏷 <b>Paso 3:</b> elige una categoría o escribe una nueva (o «Omitir»).", categoryKeyboard(existing))
}

func (b *Bot) askPlan(ctx context.Context, chatID int64) error {
	if err := b.sendWithReplyMarkup(ctx, chatID, formatPlans(plan.All()), tgbotapi.NewRemoveKeyboard(true)); err != nil {
		return err
	}
	return b.sendWithReplyMarkup(ctx, chatID, "🧠 <b>Paso 5:</b> elige el plan de repetición.", planKeyboard(plan.All()))
}

// choosePlan previews the schedule of key and waits for confirmation.
func (b *Bot) choosePlan(ctx context.Context, chatID int64, from *tgbotapi.User, key string) error {
	state := b.getConversation(from.ID)
	if state == nil || (state.stage != stagePlan && state.stage != stageConfirm) {
		return b.sendText(ctx, chatID, "No hay ninguna tarea en curso. Empieza con /newtask.")
	}

	p, items, err := b.svc.Tasks.Preview(key, state.input.Anchor)
	if errors.Is(err, plan.ErrNotFound) {
		return b.sendWithReplyMarkup(ctx, chatID, "Plan desconocido. Elige uno de la lista.", planKeyboard(plan.All()))
	}
	if err != nil {
		return err
	}

	state.input.PlanKey = p.Key
	state.stage = stageConfirm
	return b.sendWithReplyMarkup(ctx, chatID, formatPreview(p, state.input.Anchor, items), createKeyboard())
}

func (b *Bot) replan(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	state := b.getConversation(from.ID)
	if state == nil {
		return b.sendText(ctx, chatID, "No hay ninguna tarea en curso. Empieza con /newtask.")
	}
	state.stage = stagePlan
	return b.sendWithReplyMarkup(ctx, chatID, "🧠 Elige otro plan.", planKeyboard(plan.All()))
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	state := b.getConversation(from.ID)
	if state == nil || state.stage != stageConfirm {
		return b.sendText(ctx, chatID, "No hay ninguna tarea en curso. Empieza con /newtask.")
	}
	b.clearConversation(from.ID)

	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	res, err := b.svc.Tasks.CreateStudyTask(ctx, user, state.input)
	if err != nil {
		return b.sendError(ctx, chatID, err)
	}

	if err := b.sendText(ctx, chatID, formatCreated(res)); err != nil {
		return err
	}
	if notice := dispatchNotice(res.Dispatch); notice != "" {
		return b.sendText(ctx, chatID, notice)
	}
	return nil
}
