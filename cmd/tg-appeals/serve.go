package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tg-appeals/internal/bot"
	"tg-appeals/internal/crash"
	"tg-appeals/internal/handler"
	"tg-appeals/internal/logger"
	"tg-appeals/internal/models"
	"tg-appeals/internal/service"
	"tg-appeals/internal/storage"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the appeals bot",
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	// log the stack of any panic before exiting
	defer crash.RecoverWithStackAndExit("main")
	crash.SetupCrashHandler()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	flushSentry, err := logger.InitSentry(cfg, version)
	if err != nil {
		log.Printf("Sentry disabled: %v", err)
		flushSentry = func() {}
	}
	defer flushSentry()

	logCloser, err := logger.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	defer logCloser.Close()

	logger.Infof("Starting tg-appeals %s", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := storage.Close(db); err != nil {
			logger.Warningf("Error closing database: %v", err)
		}
	}()

	repo := storage.NewAppealRepository(db)
	if err := repo.MigrateTable(ctx); err != nil {
		return fmt.Errorf("failed to migrate appeals table: %w", err)
	}

	handler.Initialize(cfg)

	botService, err := bot.Initialize(ctx, cfg, func(ctx context.Context) error {
		return storage.Ping(ctx, db)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}

	unbanChain := service.NewUnbanChainFromConfig(cfg, botService.Bot)
	logger.Infof("Unban providers: %v", unbanChain.Providers())

	appeals := service.NewAppealService(
		repo,
		service.NewTelegramMembershipChecker(botService.Bot, cfg.Bot.MainGroupID),
		unbanChain,
		cfg,
		models.NewUserLocks(),
	)

	h := handler.New(appeals, handler.NewTelegoSender(botService.Bot), cfg)
	h.SetBotUsername(botService.Username)

	crash.SafeGoroutine("http-server", func() {
		if err := botService.Server.Start(); err != nil {
			logger.Errorf("HTTP server error: %v", err)
		}
	})

	handler.SetupMessageHandlers(botService.Handler, h)

	stopMonitoring := make(chan struct{})
	handler.StartStatusMonitoring(stopMonitoring)

	crash.SafeGoroutine("bot-handler", botService.Start)
	logger.Infof("Bot @%s is running in %s mode", botService.Username, cfg.Bot.Mode)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	botService.Stop()

	logger.Info("Waiting for message handlers to complete...")
	if handler.WaitForHandlers(30 * time.Second) {
		logger.Info("All message handlers completed")
	} else {
		logger.Warning("Timeout waiting for message handlers, proceeding with shutdown")
	}

	cancel()
	close(stopMonitoring)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := botService.Server.Shutdown(shutdownCtx); err != nil {
		logger.Warningf("HTTP server shutdown error: %v", err)
	}

	logger.Info("Server gracefully stopped")
	return nil
}
