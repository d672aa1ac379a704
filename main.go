package main

import (
	"log/slog"
	"os"

	"github.com/kaigo-tools/attendrelay/cmd"
)

func main() {
	// Default to JSON logs at info level; cmd/root.go reconfigures the
	// level once flags and config are parsed.
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	if err := cmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
