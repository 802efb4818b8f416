package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/rhmaster-billing/internal/cache"
	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetMentor(ctx context.Context, mentorID string) (*models.Mentor, error) {
	args := m.Called(ctx, mentorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mentor), args.Error(1)
}

func (m *RepoMock) GetSubscription(ctx context.Context, mentorID string) (*models.Subscription, error) {
	args := m.Called(ctx, mentorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) GetSubscriptionByProviderID(ctx context.Context, id string) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) GetSubscriptionByCustomerID(ctx context.Context, id string) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) SaveSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	args := m.Called(ctx, sub)
	return int64(args.Int(0)), args.Error(1)
}

func (m *RepoMock) SetProviderCustomer(ctx context.Context, mentorID, customerID string) error {
	return m.Called(ctx, mentorID, customerID).Error(0)
}

func (m *RepoMock) SetCancelAtPeriodEnd(ctx context.Context, mentorID string, cancel bool) error {
	return m.Called(ctx, mentorID, cancel).Error(0)
}

func (m *RepoMock) MarkCanceled(ctx context.Context, mentorID string, at time.Time) error {
	return m.Called(ctx, mentorID, at).Error(0)
}

func (m *RepoMock) InsertCancellation(ctx context.Context, c models.Cancellation) error {
	return m.Called(ctx, c).Error(0)
}

func (m *RepoMock) UpsertInvoice(ctx context.Context, inv models.Invoice) (bool, error) {
	args := m.Called(ctx, inv)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) ListInvoices(ctx context.Context, mentorID string) ([]models.Invoice, error) {
	args := m.Called(ctx, mentorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *RepoMock) MarkWebhookProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	args := m.Called(ctx, eventID, eventType)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) ForgetWebhook(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *RepoMock) CreateClientWithinLimit(ctx context.Context, c models.Client, maxClients int) (*models.Client, error) {
	args := m.Called(ctx, c, maxClients)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *RepoMock) ListClients(ctx context.Context, mentorID string) ([]models.Client, error) {
	args := m.Called(ctx, mentorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Client), args.Error(1)
}

type ProviderMock struct{ mock.Mock }

func (m *ProviderMock) subscription(args mock.Arguments) (*paymentprovider.Subscription, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

func (m *ProviderMock) CreateCustomer(ctx context.Context, mentorID, email, name string) (string, error) {
	args := m.Called(ctx, mentorID, email, name)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) CreateSubscription(ctx context.Context, mentorID, customerID, priceID, idempotencyKey string) (*paymentprovider.Subscription, error) {
	return m.subscription(m.Called(ctx, mentorID, customerID, priceID, idempotencyKey))
}

func (m *ProviderMock) ChangePrice(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*paymentprovider.Subscription, error) {
	return m.subscription(m.Called(ctx, subscriptionID, priceID, idempotencyKey))
}

func (m *ProviderMock) Cancel(ctx context.Context, subscriptionID, reason string) (*paymentprovider.Subscription, error) {
	return m.subscription(m.Called(ctx, subscriptionID, reason))
}

func (m *ProviderMock) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool, reason string) (*paymentprovider.Subscription, error) {
	return m.subscription(m.Called(ctx, subscriptionID, cancel, reason))
}

func (m *ProviderMock) ListInvoices(ctx context.Context, customerID string) ([]models.Invoice, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *ProviderMock) ParseWebhook(payload []byte, signature string) (*paymentprovider.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Event), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, event models.LifecycleEvent) error {
	return m.Called(ctx, event).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Stripe: config.Stripe{
			Prices: map[string]string{
				"basic_monthly":      "price_basic_m",
				"pro_monthly":        "price_pro_m",
				"pro_annual":         "price_pro_a",
				"enterprise_monthly": "price_ent_m",
			},
		},
		Billing: config.Billing{
			CacheTTL:       time.Hour,
			MutationLock:   30 * time.Second,
			IdempotencyTTL: 24 * time.Hour,
		},
	}
}

type fixture struct {
	svc       *SubscriptionService
	repo      *RepoMock
	provider  *ProviderMock
	publisher *PublisherMock
	cache     *cache.Cache
	redis     *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	f := &fixture{
		repo:      new(RepoMock),
		provider:  new(ProviderMock),
		publisher: new(PublisherMock),
		cache:     c,
		redis:     mr,
	}
	f.svc = NewSubscriptionService(f.repo, f.provider, c, f.publisher, nil, testConfig(), newNoopLogger())
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.repo.AssertExpectations(t)
	f.provider.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func at(d time.Duration) *time.Time {
	v := testNow.Add(d)
	return &v
}

func trialSub(mentorID string) *models.Subscription {
	return &models.Subscription{
		ID:           1,
		MentorID:     mentorID,
		Plan:         models.PlanBasic,
		Status:       models.StatusTrial,
		BillingCycle: models.CycleMonthly,
		MaxClients:   10,
		StartDate:    testNow.Add(-4 * 24 * time.Hour),
		TrialEndDate: at(3 * 24 * time.Hour),
		AutoRenew:    true,
	}
}

func activeSub(mentorID string) *models.Subscription {
	return &models.Subscription{
		ID:                     2,
		MentorID:               mentorID,
		Plan:                   models.PlanPro,
		Status:                 models.StatusActive,
		BillingCycle:           models.CycleMonthly,
		MaxClients:             50,
		StartDate:              testNow.Add(-10 * 24 * time.Hour),
		CurrentPeriodEnd:       at(20 * 24 * time.Hour),
		AutoRenew:              true,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
	}
}
