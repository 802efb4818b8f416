package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/magabrotheeeer/rhmaster-billing/internal/client"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// SuccessParam параметр адреса возврата после оплаты.
const SuccessParam = "subscription_success"

// SubscriptionAPI запросы чтения подписки.
type SubscriptionAPI interface {
	CurrentSubscription(ctx context.Context) (*models.Subscription, error)
	Invoices(ctx context.Context) ([]models.Invoice, error)
}

// Reader хранит подписку и счета ментора, загруженные с сервера.
type Reader struct {
	api    SubscriptionAPI
	notify Notifier
	log    *slog.Logger

	mu       sync.Mutex
	sub      *models.Subscription
	invoices []models.Invoice
	missing  bool
	loaded   bool
	closed   bool
}

// NewReader создает Reader.
func NewReader(api SubscriptionAPI, notify Notifier, log *slog.Logger) *Reader {
	return &Reader{api: api, notify: notify, log: log}
}

// Load перечитывает подписку. 404 переводит в состояние без подписки без сообщения
// об ошибке. Другие ошибки показываются пользователю, прежнее состояние сохраняется.
func (r *Reader) Load(ctx context.Context) error {
	const op = "dashboard.Reader.Load"

	sub, err := r.api.CurrentSubscription(ctx)
	if err != nil {
		if client.IsNotFound(err) {
			r.apply(func() {
				r.sub = nil
				r.invoices = nil
				r.missing = true
				r.loaded = true
			})
			return nil
		}
		r.log.Error("failed to load subscription", sl.Op(op), sl.Err(err))
		if !r.isClosed() {
			r.notify.Error(client.Message(err, msgLoadFailed))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	r.apply(func() {
		r.sub = sub
		r.missing = false
		r.loaded = true
	})

	invoices, err := r.api.Invoices(ctx)
	if err != nil {
		r.log.Error("failed to load invoices", sl.Op(op), sl.Err(err))
		if !r.isClosed() {
			r.notify.Error(client.Message(err, msgInvoicesFailed))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	r.apply(func() { r.invoices = invoices })
	return nil
}

// HandleReturnURL обрабатывает возврат после оплаты: при subscription_success=true
// показывает сообщение, перечитывает подписку и возвращает адрес без параметра.
// Остальные адреса возвращаются без изменений.
func (r *Reader) HandleReturnURL(ctx context.Context, raw string) (string, error) {
	const op = "dashboard.Reader.HandleReturnURL"

	u, err := url.Parse(raw)
	if err != nil {
		return raw, fmt.Errorf("%s: %w", op, err)
	}
	q := u.Query()
	if q.Get(SuccessParam) != "true" {
		return raw, nil
	}

	r.notify.Success(msgSubscriptionReady)
	q.Del(SuccessParam)
	u.RawQuery = q.Encode()

	if err := r.Load(ctx); err != nil {
		return u.String(), fmt.Errorf("%s: %w", op, err)
	}
	return u.String(), nil
}

// Close отключает Reader: результаты запросов, завершившихся позже, отбрасываются.
func (r *Reader) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Subscription текущая подписка, nil если ее нет или она еще не загружена.
func (r *Reader) Subscription() *models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sub
}

// Invoices загруженные счета.
func (r *Reader) Invoices() []models.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices
}

// View модель отображения по последнему загруженному состоянию.
func (r *Reader) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return View{Loading: true}
	}
	return NewView(r.sub, r.invoices)
}

func (r *Reader) apply(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	f()
}

func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
