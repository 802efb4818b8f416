package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/rhmaster-billing/internal/app/notifier"
	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env)

	logger.Info("starting billing-notifier", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := notifier.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize notifier", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("notifier stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("billing-notifier stopped gracefully")
}
