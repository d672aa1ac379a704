package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kaigo-tools/attendrelay/internal/config"
)

var extractCmd = &cobra.Command{
	Use:   "extract [image]",
	Short: "Run OCR and record extraction on a local image file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.Vision.APIKey == "" || cfg.OpenAI.APIKey == "" {
			return fmt.Errorf("vision.api_key and openai.api_key must be configured")
		}

		path := cfg.DefaultImage
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no image given and extract.default_image is not configured")
		}

		image, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		records, err := buildExtractor(cfg).Records(ctx, image)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		return nil
	},
}
