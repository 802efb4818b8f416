// Package notifier собирает сервис уведомлений: события жизненного цикла из RabbitMQ
// превращаются в письма менторам.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/smtp"
	"github.com/magabrotheeeer/rhmaster-billing/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/rhmaster-billing/internal/services/sender"
	"github.com/magabrotheeeer/rhmaster-billing/internal/storage/repository"
)

// App приложение сервиса уведомлений.
type App struct {
	db            *repository.Storage
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New подключается к БД и брокеру и создает SenderService.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.notifier.New"

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.BillingQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	senderService := senderservice.NewSenderService(db, smtp.NewTransport(cfg.SMTP), logger)

	return &App{
		db:            db,
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run обрабатывает очередь уведомлений до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("notifier consuming", slog.String("queue", rabbitmq.NotificationQueue))
	err := rabbitmq.Consume(ctx, a.logger, a.ch, rabbitmq.NotificationQueue, a.senderService.Handle)
	if err != nil {
		a.logger.Error("consumer stopped", slog.String("queue", rabbitmq.NotificationQueue), sl.Err(err))
	}

	a.logger.Info("notifier shutting down gracefully")
	if cerr := a.ch.Close(); cerr != nil {
		a.logger.Error("failed to close channel", sl.Err(cerr))
	}
	if cerr := a.conn.Close(); cerr != nil {
		a.logger.Error("failed to close connection", sl.Err(cerr))
	}
	if cerr := a.db.Close(); cerr != nil {
		a.logger.Error("failed to close database", sl.Err(cerr))
	}
	return err
}
