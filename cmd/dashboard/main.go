package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/dashboard"
	"github.com/smukkama/weather-dashboard/pkg/config"
	"github.com/smukkama/weather-dashboard/pkg/logging"
	"github.com/smukkama/weather-dashboard/pkg/metrics"
)

var (
	timeout  time.Duration
	logLevel string
	asJSON   bool

	cfg    *config.Config
	logger *zap.Logger
	app    *dashboard.App
)

var rootCmd = &cobra.Command{
	Use:           "dashboard",
	Short:         "Weather dashboard: favorites, alerts, settings and session state",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel == "" {
			logLevel = cfg.Log.Level
		}
		logger, err = logging.New(logLevel)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		app, err = dashboard.Open(ctx, cfg, logger, metrics.NewCollector(cfg.Metrics.Namespace))
		if err != nil {
			return fmt.Errorf("storage is unavailable, nothing was changed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (default: LOG_LEVEL or info)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, profileCmd)
	rootCmd.AddCommand(searchCmd, forecastCmd, citiesCmd)
	rootCmd.AddCommand(favoritesCmd, recentCmd, settingsCmd, alertsCmd)
	rootCmd.AddCommand(exportCmd, importCmd, infoCmd, resetCmd)
}

func main() {
	err := rootCmd.Execute()
	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// shutdown runs after every command, including failed ones.
func shutdown() {
	if app != nil {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
