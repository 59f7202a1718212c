// Package main contains the entrypoint for the location bot and its admin dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Purpleaki2024/location-genius-bot/internal/admin"
	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/bot"
	"github.com/Purpleaki2024/location-genius-bot/internal/bot/handlers"
	"github.com/Purpleaki2024/location-genius-bot/internal/bot/tasks"
	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/conversation"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
	"github.com/Purpleaki2024/location-genius-bot/internal/geocode"
	"github.com/Purpleaki2024/location-genius-bot/internal/logger"
	"github.com/Purpleaki2024/location-genius-bot/internal/notify"
	"github.com/Purpleaki2024/location-genius-bot/internal/ratelimit"
	"github.com/Purpleaki2024/location-genius-bot/internal/telegram"
	"github.com/Purpleaki2024/location-genius-bot/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log, logCloser := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON, logger.FileOptions{
		Path:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.FileMaxSizeMB,
		MaxBackups: cfg.Logger.FileMaxBackups,
		MaxAgeDays: cfg.Logger.FileMaxAgeDays,
	})
	defer logCloser.Close()
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON, "file", cfg.Logger.File)

	if cfg.Web.SessionSecret == config.DefaultSessionSecret {
		log.Warn("Using the default session secret; set SECRET_KEY in production")
	}

	db, err := database.NewDB(cfg.Database.DSN)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	if _, err := admin.SeedInitialAdmin(ctx, store, cfg.Admin, log); err != nil {
		log.Error("Failed to seed initial admin", "error", err)
		return 1
	}

	var (
		rdb         *redis.Client
		stateStore  conversation.StateStore
		sessionData fiber.Storage
	)
	if cfg.Redis.URL != "" {
		rdb, err = database.NewRedisClient(ctx, cfg.Redis.URL, log)
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			return 1
		}
		defer rdb.Close()
		stateStore = conversation.NewRedisStore(rdb, cfg.Redis.StateTTL)
		sessionData = web.NewRedisStorage(rdb, "")
	} else {
		stateStore = conversation.NewMemoryStore()
	}

	limiter := ratelimit.New()
	hDeps := handlers.HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Store:      store,
		Geocoder:   geocode.NewClient(cfg.Geocoder, log),
		Tracker:    conversation.NewTracker(stateStore, log),
		Limiter:    limiter,
		Authorizer: auth.DirectIDAuth{Accounts: store},
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.Adapt(handlers.NewDefaultHandler(hDeps))),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	adminSvc := admin.NewService(store, notify.NewBotNotifier(tg, log), cfg.Messages, log)
	hDeps.Admin = adminSvc

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	telegram.PublishCommands(ctx, tg, log, cmdHandlers)

	var dashboard bot.WebServer
	if cfg.Web.Enabled {
		srv, err := web.New(web.Deps{
			Logger:        log,
			Config:        cfg.Web,
			Store:         store,
			Authenticator: auth.NewAuthenticator(store, log),
			Admin:         adminSvc,
			Storage:       sessionData,
		})
		if err != nil {
			log.Error("Failed to create web server", "error", err)
			return 1
		}
		dashboard = srv
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Limiter: limiter,
		Config:  cfg,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, tg, dashboard, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully")
	return 0
}
