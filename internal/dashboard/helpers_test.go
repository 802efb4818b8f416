package dashboard

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
)

type toast struct {
	kind string
	msg  string
}

type recorder struct {
	mu     sync.Mutex
	toasts []toast
}

func (r *recorder) Success(msg string) { r.add("success", msg) }
func (r *recorder) Error(msg string)   { r.add("error", msg) }
func (r *recorder) Info(msg string)    { r.add("info", msg) }

func (r *recorder) add(kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, toast{kind: kind, msg: msg})
}

func (r *recorder) all() []toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]toast(nil), r.toasts...)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// MockAPI реализует все запросы, которые используют компоненты страницы.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) CurrentSubscription(ctx context.Context) (*models.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockAPI) Invoices(ctx context.Context) ([]models.Invoice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockAPI) CreateSubscription(ctx context.Context, req models.ChangePlanRequest) (*models.ChangePlanResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChangePlanResult), args.Error(1)
}

func (m *MockAPI) UpdateSubscription(ctx context.Context, req models.ChangePlanRequest) (*models.ChangePlanResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChangePlanResult), args.Error(1)
}

func (m *MockAPI) CancelSubscription(ctx context.Context, req models.CancelRequest) (*models.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MessageResponse), args.Error(1)
}

func (m *MockAPI) ReactivateSubscription(ctx context.Context) (*models.MessageResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MessageResponse), args.Error(1)
}

type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Ready() bool {
	return m.Called().Bool(0)
}

func (m *MockConfirmer) Status(ctx context.Context, clientSecret string) (paymentprovider.IntentStatus, error) {
	args := m.Called(ctx, clientSecret)
	return args.Get(0).(paymentprovider.IntentStatus), args.Error(1)
}

func (m *MockConfirmer) Confirm(ctx context.Context, clientSecret, paymentMethodID, returnURL string) (paymentprovider.IntentStatus, error) {
	args := m.Called(ctx, clientSecret, paymentMethodID, returnURL)
	return args.Get(0).(paymentprovider.IntentStatus), args.Error(1)
}

type countingRefetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRefetcher) Load(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func intPtr(v int) *int { return &v }
