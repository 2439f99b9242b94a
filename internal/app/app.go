package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NAKAZUKA/fin-report-bot/internal/archive"
	"github.com/NAKAZUKA/fin-report-bot/internal/config"
	"github.com/NAKAZUKA/fin-report-bot/internal/database"
	"github.com/NAKAZUKA/fin-report-bot/internal/disclosure"
	"github.com/NAKAZUKA/fin-report-bot/internal/dispatcher"
	"github.com/NAKAZUKA/fin-report-bot/internal/handlers"
	"github.com/NAKAZUKA/fin-report-bot/internal/metrics"
	"github.com/NAKAZUKA/fin-report-bot/internal/objectstore"
	"github.com/NAKAZUKA/fin-report-bot/internal/repository"
	"github.com/NAKAZUKA/fin-report-bot/internal/scheduler"
	"github.com/NAKAZUKA/fin-report-bot/internal/server"
	"github.com/NAKAZUKA/fin-report-bot/internal/telegram"
)

const (
	// providerMaxInFlight and providerPerSecond bound the aggregate
	// load on the disclosure API across the whole process.
	providerMaxInFlight = 5
	providerPerSecond   = 5
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting fin-report-bot")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := database.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	repo := repository.New(dbConn)
	m := metrics.NewMetrics()

	gate := disclosure.NewGate(providerMaxInFlight, providerPerSecond)
	client := disclosure.NewClient(cfg.Disclosure, gate)

	store, err := objectstore.New(cfg.Minio)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	notifier := telegram.NewNotifier(cfg.Telegram.Token)
	extractor := archive.NewExtractor("")

	disp := dispatcher.New(client, repo, store, notifier, extractor, m,
		cfg.Disclosure.EventCount, cfg.Telegram.TextOnly)

	sched := scheduler.NewScheduler(&cfg.Scheduler, disp, m)

	h := handlers.NewHandlers(dbConn, repo, sched, m)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Stopped gracefully")
	return nil
}
