package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

func TestStorage_CreateMentorWithTrial(t *testing.T) {
	storage := setupTestDatabase(t)
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	trialEnd := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	id := factory.CreateTrialMentor(t, "coach@example.com", trialEnd)

	mentor, err := storage.GetMentorByEmail(ctx, "coach@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, mentor.ID)
	require.NotNil(t, mentor.TrialEndDate)
	assert.True(t, trialEnd.Equal(*mentor.TrialEndDate))

	sub, err := storage.GetSubscription(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTrial, sub.Status)
	assert.Equal(t, models.PlanBasic, sub.Plan)
	assert.Equal(t, models.CycleMonthly, sub.BillingCycle)
	assert.Equal(t, 0, sub.ClientCount)

	t.Run("повторный email", func(t *testing.T) {
		_, err := storage.CreateMentorWithTrial(ctx,
			models.Mentor{Email: "coach@example.com", Name: "x", PasswordHash: "h"},
			models.Subscription{Plan: models.PlanBasic, Status: models.StatusTrial, StartDate: time.Now()})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestStorage_GetSubscription_NotFound(t *testing.T) {
	storage := setupTestDatabase(t)

	_, err := storage.GetSubscription(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = storage.GetMentor(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_SaveSubscriptionAndLookups(t *testing.T) {
	storage := setupTestDatabase(t)
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	mentorID := factory.CreateTrialMentor(t, "a@example.com", time.Now().Add(time.Hour))
	factory.CreateClients(t, mentorID, 3)

	periodEnd := time.Now().AddDate(0, 1, 0).UTC().Truncate(time.Second)
	_, err := storage.SaveSubscription(ctx, models.Subscription{
		MentorID:               mentorID,
		Plan:                   models.PlanPro,
		Status:                 models.StatusActive,
		BillingCycle:           models.CycleAnnual,
		MaxClients:             50,
		StartDate:              time.Now(),
		CurrentPeriodEnd:       &periodEnd,
		AutoRenew:              true,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
	})
	require.NoError(t, err)

	byProvider, err := storage.GetSubscriptionByProviderID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, mentorID, byProvider.MentorID)
	assert.Equal(t, 3, byProvider.ClientCount)
	assert.Equal(t, models.CycleAnnual, byProvider.BillingCycle)

	byCustomer, err := storage.GetSubscriptionByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, byProvider.ID, byCustomer.ID)

	require.NoError(t, storage.SetCancelAtPeriodEnd(ctx, mentorID, true))
	sub, err := storage.GetSubscription(ctx, mentorID)
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.False(t, sub.AutoRenew)
	assert.Equal(t, models.StatusActive, sub.Status)

	due, err := storage.FindDueCancellations(ctx, periodEnd.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, mentorID, due[0].MentorID)

	notDue, err := storage.FindDueCancellations(ctx, periodEnd.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, notDue)

	canceledAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, storage.MarkCanceled(ctx, mentorID, canceledAt))
	sub, err = storage.GetSubscription(ctx, mentorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, sub.Status)
	assert.False(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CanceledAt)

	require.NoError(t, storage.InsertCancellation(ctx, models.Cancellation{
		SubscriptionID: sub.ID, MentorID: mentorID, Reason: "too expensive", Immediate: true,
	}))
}

func TestStorage_Trials(t *testing.T) {
	storage := setupTestDatabase(t)
	factory := NewTestDataFactory(storage)
	ctx := context.Background()
	now := time.Now().UTC()

	elapsed := factory.CreateTrialMentor(t, "elapsed@example.com", now.Add(-time.Hour))
	tomorrow := factory.CreateTrialMentor(t, "tomorrow@example.com", now.Add(30*time.Hour))
	factory.CreateTrialMentor(t, "later@example.com", now.Add(5*24*time.Hour))

	ending, err := storage.FindTrialsEndingBetween(ctx, now.Add(24*time.Hour), now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, ending, 1)
	assert.Equal(t, tomorrow, ending[0].MentorID)
	assert.Equal(t, "tomorrow@example.com", ending[0].Email)

	gone, err := storage.FindElapsedTrials(ctx, now)
	require.NoError(t, err)
	require.Len(t, gone, 1)
	assert.Equal(t, elapsed, gone[0].MentorID)

	ok, err := storage.ExpireTrial(ctx, gone[0].SubscriptionID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = storage.ExpireTrial(ctx, gone[0].SubscriptionID)
	require.NoError(t, err)
	assert.False(t, ok)

	sub, err := storage.GetSubscription(ctx, elapsed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, sub.Status)
}

func TestStorage_Invoices(t *testing.T) {
	storage := setupTestDatabase(t)
	factory := NewTestDataFactory(storage)
	ctx := context.Background()
	mentorID := factory.CreateTrialMentor(t, "inv@example.com", time.Now())

	older := models.Invoice{ID: "in_1", MentorID: mentorID, Number: "A-1", Status: "open", AmountDue: 2900,
		Currency: "usd", Created: time.Now().Add(-48 * time.Hour)}
	newer := models.Invoice{ID: "in_2", MentorID: mentorID, Number: "A-2", Status: "paid", AmountDue: 7900,
		AmountPaid: 7900, Currency: "usd", Created: time.Now()}

	inserted, err := storage.UpsertInvoice(ctx, older)
	require.NoError(t, err)
	assert.True(t, inserted)
	_, err = storage.UpsertInvoice(ctx, newer)
	require.NoError(t, err)

	pdf := "https://files.example/in_1.pdf"
	paid := older
	paid.Status = "paid"
	paid.AmountPaid = 2900
	paid.AmountDue = 1
	paid.PDF = &pdf
	inserted, err = storage.UpsertInvoice(ctx, paid)
	require.NoError(t, err)
	assert.False(t, inserted)

	list, err := storage.ListInvoices(ctx, mentorID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "in_2", list[0].ID)
	assert.Equal(t, "paid", list[1].Status)
	assert.Equal(t, int64(2900), list[1].AmountDue, "сумма к оплате не переписывается")
	require.NotNil(t, list[1].PDF)
	assert.Equal(t, pdf, *list[1].PDF)

	empty, err := storage.ListInvoices(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStorage_CreateClientWithinLimit(t *testing.T) {
	storage := setupTestDatabase(t)
	factory := NewTestDataFactory(storage)
	ctx := context.Background()
	mentorID := factory.CreateTrialMentor(t, "clients@example.com", time.Now().Add(time.Hour))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		okCount int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := storage.CreateClientWithinLimit(ctx, models.Client{MentorID: mentorID, Name: "c"}, 3)
			if err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrLimitReached)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, okCount)
	list, err := storage.ListClients(ctx, mentorID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestStorage_MarkWebhookProcessed(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()

	first, err := storage.MarkWebhookProcessed(ctx, "evt_1", "invoice.paid")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := storage.MarkWebhookProcessed(ctx, "evt_1", "invoice.paid")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, storage.ForgetWebhook(ctx, "evt_1"))
	first, err = storage.MarkWebhookProcessed(ctx, "evt_1", "invoice.paid")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestStorage_ContextCanceled(t *testing.T) {
	s := &Storage{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetSubscription(ctx, "m")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.ListInvoices(ctx, "m")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.MarkWebhookProcessed(ctx, "evt", "t")
	assert.ErrorIs(t, err, context.Canceled)
}
