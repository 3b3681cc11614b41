package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Fabian-Z77/StudySpace/internal/datekey"
	"github.com/Fabian-Z77/StudySpace/internal/model"
	"github.com/Fabian-Z77/StudySpace/internal/repository"
	"github.com/Fabian-Z77/StudySpace/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbPostponePrefix = "postpone:"
	cbPlanPrefix     = "plan:"
	cbCreate         = "create"
	cbReplan         = "replan"
)

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// Services bundles what the bot talks to.
type Services struct {
	Users      *repository.UserRepository
	Tasks      *service.TaskService
	Categories *service.CategoryService
	Agenda     *service.AgendaService
	Dates      *datekey.Normalizer
}

// Bot aggregates Telegram API with services. It also delivers fired reminders.
type Bot struct {
	api           *tgbotapi.BotAPI
	svc           Services
	limiter       *rate.Limiter
	log           zerolog.Logger
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

// New connects to Telegram. Outgoing messages are paced to sendRate per second.
func New(token string, svc Services, sendRate float64, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log = log.With().Str("component", "bot").Logger()
	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	if sendRate <= 0 {
		sendRate = 20
	}
	burst := int(sendRate)
	if burst < 1 {
		burst = 1
	}

	return &Bot{
		api:           api,
		svc:           svc,
		limiter:       rate.NewLimiter(rate.Limit(sendRate), burst),
		log:           log,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Int64("chat", update.Message.Chat.ID).Msg("handle message")
			}
		}
	}

	return nil
}

// Deliver sends a fired reminder to a chat. Title and body are plain text.
func (b *Bot) Deliver(ctx context.Context, recipient int64, title, body string) error {
	msg := tgbotapi.NewMessage(recipient, formatDelivery(title, body))
	msg.ParseMode = tgbotapi.ModeHTML
	return b.send(ctx, msg)
}

// DeliverDigest sends a digest whose body is already HTML.
func (b *Bot) DeliverDigest(ctx context.Context, recipient int64, title, html string) error {
	msg := tgbotapi.NewMessage(recipient, formatDigest(title, html))
	msg.ParseMode = tgbotapi.ModeHTML
	return b.send(ctx, msg)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(ctx, msg.Chat.ID, "⏪ Creación de tarea cancelada.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Info().Int64("user", msg.From.ID).Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(ctx, msg.Chat.ID, "No entendí el mensaje. Usa /newtask para crear una tarea o /help para ver los comandos.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(ctx, msg)
	case "plans":
		return b.handlePlans(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "postpone":
		return b.handlePostpone(ctx, msg)
	case "reminders":
		return b.handleReminders(ctx, msg)
	case "agenda":
		return b.handleAgenda(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(ctx, msg.Chat.ID, "⏪ Creación de tarea cancelada.")
	default:
		return b.sendText(ctx, msg.Chat.ID, "Comando no soportado. Revisa /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelAgenda):
		return true, b.handleAgenda(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(ctx, msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.svc.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

// send waits for the rate limiter before every API call.
func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := b.api.Send(c)
	return err
}

func (b *Bot) request(ctx context.Context, c tgbotapi.Chattable) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.api.Request(c); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	return b.send(ctx, msg)
}

func (b *Bot) sendWithReplyMarkup(ctx context.Context, chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return b.send(ctx, msg)
}

// sendError maps service errors to a user message.
func (b *Bot) sendError(ctx context.Context, chatID int64, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return b.sendText(ctx, chatID, "Tarea no encontrada.")
	case errors.Is(err, service.ErrInvalidInput):
		return b.sendText(ctx, chatID, escape(strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")))
	default:
		b.log.Error().Err(err).Int64("chat", chatID).Msg("request failed")
		return b.sendText(ctx, chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func parseTaskID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "#")), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}
