package main

import (
	"log/slog"
	"os"

	"icloud-photo-downloader/internal/app"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := app.Execute(); err != nil {
		slog.Error("app failed", "error", err)
		os.Exit(1)
	}
}
