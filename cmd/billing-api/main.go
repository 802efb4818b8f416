// Package main RH Master Billing API
//
// @title           RH Master Billing API
// @version         1.0
// @description     API подписок менторов RH Master: пробный период, тарифы, оплата через Stripe, отмена и возобновление.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	billingapi "github.com/magabrotheeeer/rhmaster-billing/internal/app/billing-api"
	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env)

	logger.Info("starting billing-api", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := billingapi.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("billing-api stopped gracefully")
}
