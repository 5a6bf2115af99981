package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/dashboard"
	"github.com/smukkama/weather-dashboard/internal/protocol"
	"github.com/smukkama/weather-dashboard/internal/queue"
)

var (
	exportFormat string
	exportOutput string
	importFormat string
	resetConfirm bool
	journalGroup string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every collection to a JSON or YAML document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		data, err := dashboard.EncodeExport(app.Export(ctx), exportFormat)
		if err != nil {
			return err
		}
		if exportOutput == "" || exportOutput == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOutput, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", exportOutput)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace collections with those in an exported document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		format := importFormat
		if format == "" {
			format = formatFromPath(args[0])
		}
		exp, err := dashboard.DecodeExport(data, format)
		if err != nil {
			return err
		}
		if err := app.Import(ctx, exp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d favorites, %d recent searches, %d alerts\n",
			len(exp.Favorites), len(exp.RecentSearches), len(exp.Alerts))
		return nil
	},
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return dashboard.FormatYAML
	default:
		return dashboard.FormatJSON
	}
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		info, err := app.Info(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, info)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend:         %s (%s)\n", cfg.Storage.Backend, cfg.Storage.Namespace)
		fmt.Fprintf(out, "favorites:       %d\n", info.Favorites)
		fmt.Fprintf(out, "recent searches: %d\n", info.RecentSearches)
		fmt.Fprintf(out, "alerts:          %d\n", info.Alerts)
		fmt.Fprintf(out, "profile:         %t\n", info.HasProfile)
		fmt.Fprintf(out, "auth token:      %t\n", info.HasAuth)
		fmt.Fprintf(out, "keys:            %d\n", info.TotalKeys)
		fmt.Fprintf(out, "size:            %s\n", info.StorageSize())
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all dashboard data, including the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirm {
			return errors.New("refusing to reset without --yes")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := app.ResetData(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All data cleared")
		return nil
	},
}

var alertsJournalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Follow triggered alerts from the Kafka journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Brokers[0] == "" {
			return errors.New("KAFKA_BROKERS is not configured")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, journalGroup)
		defer consumer.Close()

		out := cmd.OutOrStdout()
		return consumer.Tail(ctx, func(e *protocol.AlertEvent) {
			if asJSON {
				_ = printJSON(cmd, e)
				return
			}
			fmt.Fprintf(out, "%s  %s\n", e.TriggeredAt.Local().Format("2006-01-02 15:04:05"), e.Message)
		}, func(err error) {
			logger.Warn("Skipping journal record", zap.Error(err))
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", dashboard.FormatJSON, "Output format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Input format (default: from file extension)")
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "Confirm deleting everything")
	alertsJournalCmd.Flags().StringVar(&journalGroup, "group", "", "Consumer group (default: read from the beginning)")
}
