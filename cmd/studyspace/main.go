package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fabian-Z77/StudySpace/internal/bot"
	"github.com/Fabian-Z77/StudySpace/internal/config"
	"github.com/Fabian-Z77/StudySpace/internal/datekey"
	"github.com/Fabian-Z77/StudySpace/internal/logging"
	"github.com/Fabian-Z77/StudySpace/internal/notify"
	"github.com/Fabian-Z77/StudySpace/internal/repository"
	"github.com/Fabian-Z77/StudySpace/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", true)
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	dates := datekey.NewNormalizer(cfg.Timezone, nil, log)
	log.Info().Str("timezone", dates.Label()).Msg("timezone resolved")

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	reminderRepo := repository.NewReminderRepository(db)

	alarms := notify.NewScheduler(reminderRepo, dates.Location(), nil, log)
	reminderSvc := service.NewReminderService(alarms, dates.Location(), nil, cfg.DayReminderHour, log)
	categorySvc := service.NewCategoryService(categoryRepo)
	taskSvc := service.NewTaskService(taskRepo, categoryRepo, userRepo, reminderSvc, dates, cfg.RetentionDays, log)
	agendaSvc := service.NewAgendaService(taskRepo, categorySvc, userRepo, dates, log)

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
		Users:      userRepo,
		Tasks:      taskSvc,
		Categories: categorySvc,
		Agenda:     agendaSvc,
		Dates:      dates,
	}, cfg.SendRatePerSec, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bot")
	}

	alarms.SetSender(telegramBot)
	restored, err := alarms.Restore(ctx)
	if err != nil {
		log.Error().Err(err).Msg("restore reminders")
	}
	log.Info().Int("count", restored).Msg("reminders restored")
	alarms.Start()
	defer alarms.Stop()

	jobs := service.NewSchedulerService(dates.Location(), log)
	if cfg.PurgeInterval > 0 {
		if _, err := jobs.ScheduleInterval("purge", cfg.PurgeInterval, func() {
			jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			removed, err := taskSvc.PurgeAll(jobCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("purge")
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("expired tasks purged")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("schedule purge")
		}
	}
	if cfg.AgendaTime != "" {
		if _, err := jobs.ScheduleDaily("agenda", cfg.AgendaTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			sent, err := agendaSvc.SendAll(jobCtx, telegramBot)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("agenda")
			}
			log.Info().Int("sent", sent).Msg("daily agenda delivered")
		}); err != nil {
			log.Fatal().Err(err).Msg("schedule agenda")
		}
	}
	jobs.Start()
	defer jobs.Stop()

	log.Info().Msg("studyspace bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("shutdown complete")
}
