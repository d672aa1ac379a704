package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kaigo-tools/attendrelay/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Poll the mailbox once and process any new attendance forms",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		p := buildPoller(cfg)
		if err := p.Connect(); err != nil {
			return err
		}
		defer p.Close()

		mails, err := p.Poll(ctx)
		if err != nil {
			return err
		}
		if len(mails) == 0 {
			slog.Info("No new mail")
			return nil
		}

		processor := buildProcessor(cfg)
		for _, mail := range mails {
			if len(mail.Attachments) == 0 {
				slog.Info("Message has no image attachments", "uid", mail.UID, "subject", mail.Subject)
				continue
			}
			if err := processor.HandleMail(ctx, mail); err != nil {
				slog.Error("Message processing failed", "uid", mail.UID, "error", err)
			}
		}

		return nil
	},
}
