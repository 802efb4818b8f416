package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/rhmaster-billing/internal/app/scheduler"
	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env)

	logger.Info("starting billing-scheduler", slog.String("env", cfg.Env), slog.Duration("interval", cfg.Interval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := scheduler.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize scheduler", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("scheduler stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("billing-scheduler stopped gracefully")
}
