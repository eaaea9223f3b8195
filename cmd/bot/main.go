package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/dispatch"
	"github.com/fin-ai-tgbot-go/internal/finance"
	"github.com/fin-ai-tgbot-go/internal/handlers"
	"github.com/fin-ai-tgbot-go/internal/i18n"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/orchestrator"
	"github.com/fin-ai-tgbot-go/internal/scheduler"
	"github.com/fin-ai-tgbot-go/internal/services/ai"
	"github.com/fin-ai-tgbot-go/internal/services/storage"
	"github.com/fin-ai-tgbot-go/internal/session"
	"github.com/fin-ai-tgbot-go/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting finance assistant bot...")

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.WithError(err).Fatal("Invalid timezone")
	}

	// Initialize bot
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}

	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Initialize storage
	storageManager, err := storage.NewManager(cfg, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	go storageManager.Start(ctx)

	// Initialize sessions
	sessions := session.NewStore(&cfg.Session, metrics, log)
	go sessions.Start(ctx)

	// Resilience middleware
	rateLimiter := middleware.NewRateLimiter(cfg, log)
	breaker := middleware.NewCircuitBreaker(cfg, log)

	// AI provider
	provider := ai.NewClient(&cfg.Provider, log)

	// Domain services
	ledger := finance.NewLedger(storageManager, loc, log)
	dispatcher := dispatch.NewDispatcher(ledger, loc, metrics, log)

	orch := orchestrator.NewOrchestrator(
		cfg,
		sessions,
		rateLimiter,
		breaker,
		provider,
		dispatcher,
		localizer,
		metrics,
		loc,
		log,
	)

	// Outbound sender and handlers
	sender := handlers.NewSender(&cfg.Bot, bot, log)

	commandHandler := handlers.NewCommandHandler(
		cfg,
		ledger,
		sessions,
		sender,
		localizer,
		loc,
		log,
	)

	messageHandler := handlers.NewMessageHandler(
		cfg,
		bot,
		orch,
		sender,
		localizer,
		log,
	)

	// Background reminder jobs
	sched := scheduler.NewScheduler(cfg, ledger, sender, localizer, metrics, loc, log)
	go sched.Start(ctx)

	// Start metrics server if enabled
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Use long polling
	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Bot.UpdateTimeout
	updates := bot.GetUpdatesChan(u)
	log.Info("Using long polling")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Main bot loop
	go func() {
		for update := range updates {
			if update.Message == nil {
				continue
			}

			chatType := "private"
			if update.Message.Chat.IsGroup() || update.Message.Chat.IsSuperGroup() {
				chatType = "group"
			}
			metrics.RecordMessageReceived(chatType)

			if update.Message.IsCommand() {
				metrics.RecordCommandExecuted(update.Message.Command())

				if err := commandHandler.HandleCommand(ctx, update.Message); err != nil {
					log.WithError(err).Error("Failed to handle command")
				}
				continue
			}

			if err := messageHandler.HandleMessage(ctx, &update); err != nil {
				log.WithError(err).Error("Failed to handle message")
			}
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received")

	// Cancel context to stop all goroutines
	cancel()

	// Give in-flight turns time to finish
	time.Sleep(2 * time.Second)

	if err := storageManager.Close(); err != nil {
		log.WithError(err).Error("Failed to close storage")
	}

	log.Info("Bot stopped")
}
