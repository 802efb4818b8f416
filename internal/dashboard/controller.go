package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/magabrotheeeer/rhmaster-billing/internal/client"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// MutationAPI запросы отмены и возобновления.
type MutationAPI interface {
	CancelSubscription(ctx context.Context, req models.CancelRequest) (*models.MessageResponse, error)
	ReactivateSubscription(ctx context.Context) (*models.MessageResponse, error)
}

// Refetcher перечитывает состояние после действия.
type Refetcher interface {
	Load(ctx context.Context) error
}

// Controller отмена и возобновление подписки.
type Controller struct {
	api    MutationAPI
	reader Refetcher
	notify Notifier
	log    *slog.Logger

	mu         sync.Mutex
	inFlight   bool
	dialogOpen bool
}

// NewController создает Controller.
func NewController(api MutationAPI, reader Refetcher, notify Notifier, log *slog.Logger) *Controller {
	return &Controller{api: api, reader: reader, notify: notify, log: log}
}

// OpenCancelDialog открывает диалог отмены.
func (c *Controller) OpenCancelDialog() {
	c.mu.Lock()
	c.dialogOpen = true
	c.mu.Unlock()
}

// DialogOpen сообщает, открыт ли диалог отмены.
func (c *Controller) DialogOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialogOpen
}

// Cancel отменяет подписку сразу или в конце периода. При успехе закрывает диалог
// и перечитывает подписку, при ошибке диалог остается открытым.
func (c *Controller) Cancel(ctx context.Context, reason string, immediate bool) error {
	const op = "dashboard.Controller.Cancel"

	req := models.CancelRequest{CancelImmediate: immediate}
	if r := strings.TrimSpace(reason); r != "" {
		req.Reason = &r
	}

	return c.mutate(ctx, op, msgCancelFailed, func(ctx context.Context) (*models.MessageResponse, error) {
		return c.api.CancelSubscription(ctx, req)
	})
}

// Reactivate возобновляет подписку, отмененную на конец периода.
func (c *Controller) Reactivate(ctx context.Context) error {
	const op = "dashboard.Controller.Reactivate"

	return c.mutate(ctx, op, msgReactivateFailed, c.api.ReactivateSubscription)
}

func (c *Controller) mutate(ctx context.Context, op, fallback string, call func(context.Context) (*models.MessageResponse, error)) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	resp, err := call(ctx)
	if err != nil {
		c.log.Error("subscription mutation failed", sl.Op(op), sl.Err(err))
		c.notify.Error(client.Message(err, fallback))
		return fmt.Errorf("%s: %w", op, err)
	}

	c.notify.Success(resp.Message)
	c.mu.Lock()
	c.dialogOpen = false
	c.mu.Unlock()

	if err := c.reader.Load(ctx); err != nil {
		c.log.Warn("failed to refetch subscription", sl.Op(op), sl.Err(err))
	}
	return nil
}
