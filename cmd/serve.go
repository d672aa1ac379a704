package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kaigo-tools/attendrelay/internal/config"
	"github.com/kaigo-tools/attendrelay/internal/health"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Continuously watch the mailbox and replay attendance records",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		slog.Info("Starting serve mode (watching mailbox)",
			"folder", cfg.IMAP.Folder, "interval", cfg.Poll.Interval)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		healthSrv := health.NewServer(cfg.Health, serviceName, slog.Default())
		go func() {
			if err := healthSrv.Start(ctx); err != nil {
				slog.Error("Health server shutdown failed", "error", err)
			}
		}()

		processor := buildProcessor(cfg)
		p := buildPoller(cfg)
		defer p.Close()

		return p.Run(ctx, cfg.Poll.Interval, processor.HandleMail)
	},
}
