// Package billingapi собирает REST API биллинга: хранилище, кеш, Stripe,
// издатель событий, HTTP-сервер и gRPC-сервер проверки здоровья.
package billingapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/rhmaster-billing/internal/cache"
	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	grpchealth "github.com/magabrotheeeer/rhmaster-billing/internal/grpc/health"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/metrics"
	"github.com/magabrotheeeer/rhmaster-billing/internal/migrations"
	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
	"github.com/magabrotheeeer/rhmaster-billing/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/rhmaster-billing/internal/services/auth"
	subservice "github.com/magabrotheeeer/rhmaster-billing/internal/services/subscription"
	"github.com/magabrotheeeer/rhmaster-billing/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App приложение REST API биллинга.
type App struct {
	server *http.Server
	health *grpchealth.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает зависимости, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.billingapi.New"

	if cfg.PublishableKey == "" {
		logger.Warn("stripe publishable key is not set, payment confirmation will be unavailable")
	}
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
		logger.Warn("stripe secret or webhook secret is not set")
	}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.BillingQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := metrics.New()
	provider := paymentprovider.NewStripe(cfg.SecretKey, cfg.WebhookSecret)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	deps := Dependencies{
		Subscriptions: subservice.NewSubscriptionService(db, provider, cacheRedis, rabbitmq.NewPublisher(ch), m, cfg, logger),
		Clients:       subservice.NewClientService(db, cacheRedis, logger),
		Auth:          authservice.NewAuthService(db, jwtMaker, cfg.Billing),
		Tokens:        jwtMaker,
		Metrics:       m,
		Limiter:       cfg.HTTPServer,
		Pingers:       map[string]Pinger{"postgres": db, "redis": cacheRedis},
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, deps)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	health := grpchealth.NewServer(cfg.GRPCAddress, map[string]grpchealth.Pinger{"postgres": db, "redis": cacheRedis}, 30*time.Second, logger)

	return &App{
		server: srv,
		health: health,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP и gRPC серверы и останавливает их при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.health.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	})

	err := g.Wait()
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
