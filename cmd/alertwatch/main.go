package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/dashboard"
	"github.com/smukkama/weather-dashboard/internal/queue"
	"github.com/smukkama/weather-dashboard/internal/scheduler"
	"github.com/smukkama/weather-dashboard/pkg/config"
	"github.com/smukkama/weather-dashboard/pkg/logging"
	"github.com/smukkama/weather-dashboard/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	err = run(cfg, logger)
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run returns only after every resource it opened has been released.
func run(cfg *config.Config, logger *zap.Logger) error {
	fmt.Println("Starting Alert Watch...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Kafka.Enabled {
		if err := queue.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 3, 1); err != nil {
			logger.Warn("Could not ensure alert journal topic", zap.Error(err))
		}
	}

	app, err := dashboard.Open(ctx, cfg, logger, metrics.NewCollector(cfg.Metrics.Namespace))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Storage is unavailable; alert watch cannot start.")
		logger.Error("Failed to open dashboard", zap.Error(err))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}()
	fmt.Printf("Connected to %s storage\n", cfg.Storage.Backend)

	if !app.Session().IsAuthenticated() {
		logger.Warn("No signed-in session; favorites are refreshed but cannot be changed")
	}

	s := scheduler.New(app, cfg.App.RefreshInterval, logger, func(r dashboard.RefreshResult) {
		for _, t := range r.Triggered {
			fmt.Printf("! %s\n", t.Message)
		}
	})
	if err := s.Start(); err != nil {
		logger.Error("Failed to schedule refresh", zap.Error(err))
		return err
	}
	defer s.Stop()

	fmt.Println("\n✓ Alert Watch is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down...")
	return nil
}
