package main

import (
	"context"
	"log/slog"
	"os"

	"yello-auth/internal/app"
	"yello-auth/internal/config"
	"yello-auth/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.LogLevel()
	log := logger.New(os.Stdout, level, cfg.Log.Format)
	slog.SetDefault(log)

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		log.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
