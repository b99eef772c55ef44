package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"drip_campaign_bot/internal/app"
	"drip_campaign_bot/internal/domain/campaign"
	"drip_campaign_bot/internal/infra/config"
	"drip_campaign_bot/internal/infra/content"
	idb "drip_campaign_bot/internal/infra/database"
	"drip_campaign_bot/internal/infra/logger"
	"drip_campaign_bot/internal/infra/scheduler"
	"drip_campaign_bot/internal/infra/sheets"
	"drip_campaign_bot/internal/infra/telegram"
	"drip_campaign_bot/internal/infra/timer"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
	}).Info("Drip campaign bot starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.Open(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		mainLogger.WithError(err).Fatal("Could not migrate database schema")
	}
	mainLogger.WithField("dialect", db.Dialect).Info("Database connection established successfully")

	subscriberRepo := idb.NewSubscriberRepository(db)
	scheduleRepo := idb.NewScheduleRepository(db)

	steps, err := content.Load(cfg.ContentFile)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not load campaign content")
	}
	mainLogger.WithField("steps", steps.StepCount()).Info("Campaign content loaded")

	policy, err := scheduler.NewPolicy(cfg)
	if err != nil {
		mainLogger.WithError(err).Fatal("Invalid delivery schedule")
	}
	mainLogger.WithField("policy", policy.String()).Info("Delivery policy selected")

	var sink campaign.Sink = campaign.NopSink{}
	if cfg.SheetsEnabled() {
		sheetsSink, err := sheets.NewSink(ctx, cfg, steps.StepCount(), logger.Component("sheets"))
		if err != nil {
			mainLogger.WithError(err).Error("Google Sheets unavailable; analytics disabled")
		} else {
			defer sheetsSink.Close()
			sink = sheetsSink
			mainLogger.Info("Google Sheets analytics enabled")
		}
	}

	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "text": c.Text()})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	// Long polling only works without a webhook; stale updates are dropped.
	if err := bot.RemoveWebhook(true); err != nil {
		mainLogger.WithError(err).Warn("Could not remove webhook")
	}
	client := telegram.NewTelebotAdapter(bot, cfg.SendRatePerSecond)

	engine := timer.NewEngine(nil, logger.Component("timer"))
	dripService := app.NewDripService(
		subscriberRepo,
		scheduleRepo,
		engine,
		steps,
		client,
		policy,
		logger.Component("drip"),
		app.WithSendRetry(cfg.SendMaxAttempts, time.Second),
		app.WithAnalytics(sink),
	)
	engine.SetFireFunc(dripService.HandleFire)

	// The registry must be rebuilt before any /start is handled.
	recovery := app.NewRecoveryManager(scheduleRepo, engine, steps, logger.Component("recovery"))
	if err := recovery.RecoverOnStartup(ctx); err != nil {
		mainLogger.WithError(err).Fatal("Schedule recovery failed")
	}
	engine.Start(ctx)

	adminService := app.NewAdminService(dripService, scheduleRepo, steps, client, cfg.AdminTelegramID, logger.Component("admin"))

	loc, err := time.LoadLocation(cfg.TargetTimezone)
	if err != nil {
		mainLogger.WithError(err).Fatal("Invalid TARGET_TIMEZONE")
	}
	digest := scheduler.NewDigestScheduler(adminService, logger.Component("digest"), cfg.CronSpecAdminDigest, loc)
	if err := digest.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start admin digest scheduler")
	}

	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(ctx, bot, dripService, steps.Welcome(), cfg.DefaultSource, cfg.AdminTelegramID, loc, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, steps.StepCount(), cfg.AdminTelegramID, handlerLogger)
	mainLogger.Info("Command handlers registered")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and timers are running")

	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	digest.Stop()
	engine.Stop()
	mainLogger.Info("Application shut down gracefully")
}
