package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

func TestNext_ClientObservedDiagram(t *testing.T) {
	tests := []struct {
		name   string
		from   State
		events []Event
		want   State
	}{
		{"оформление новой подписки", NoSubscription, []Event{SelectPlan, ConfirmPayment}, Active},
		{"немедленная отмена", Active, []Event{CancelImmediate}, Canceled},
		{"отмена в конце периода", Active, []Event{CancelAtPeriodEnd, PeriodElapsed}, Canceled},
		{"возобновление", Active, []Event{CancelAtPeriodEnd, Reactivate}, Active},
		{"повторная подписка после отмены", Canceled, []Event{SelectPlan, ConfirmPayment}, Active},
		{"повторная подписка после истечения", Expired, []Event{SelectPlan, ConfirmPayment}, Active},
		{"повторная подписка из inactive", Inactive, []Event{SelectPlan, PaymentNotNeeded}, Active},
		{"пробный период истек", Trial, []Event{TrialElapsed}, Expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.from
			for _, e := range tt.events {
				var err error
				state, err = Next(state, e)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestNext_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from  State
		event Event
	}{
		{Active, Reactivate},
		{Canceled, Reactivate},
		{NoSubscription, CancelImmediate},
		{Expired, CancelAtPeriodEnd},
		{Trial, Reactivate},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.from, got)
			assert.False(t, CanTransition(tt.from, tt.event))
		})
	}
}

func TestObserve(t *testing.T) {
	assert.Equal(t, NoSubscription, Observe(nil))
	assert.Equal(t, Active, Observe(&models.Subscription{Status: models.StatusActive}))
	assert.Equal(t, CancelScheduled, Observe(&models.Subscription{Status: models.StatusActive, CancelAtPeriodEnd: true}))
	assert.Equal(t, Trial, Observe(&models.Subscription{Status: models.StatusTrial}))
	assert.Equal(t, Inactive, Observe(&models.Subscription{Status: models.StatusInactive}))
	assert.Equal(t, Expired, Observe(&models.Subscription{Status: models.StatusExpired}))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, models.StatusActive, StatusOf(CancelScheduled))
	assert.Equal(t, models.StatusCanceled, StatusOf(Canceled))
	assert.Equal(t, models.StatusInactive, StatusOf(PendingPayment))
}

func TestBadge_CancelAtPeriodEndOverridesStatus(t *testing.T) {
	for _, status := range []models.Status{
		models.StatusActive, models.StatusTrial, models.StatusCanceled, models.StatusExpired, models.StatusInactive,
	} {
		sub := &models.Subscription{Status: status, CancelAtPeriodEnd: true}
		assert.Equal(t, "Cancellation Scheduled", Badge(sub), string(status))
	}
}

func TestBadge_PlainMapping(t *testing.T) {
	assert.Equal(t, BadgeActive, Badge(&models.Subscription{Status: models.StatusActive}))
	assert.Equal(t, BadgeTrial, Badge(&models.Subscription{Status: models.StatusTrial}))
	assert.Equal(t, BadgeExpired, Badge(&models.Subscription{Status: models.StatusExpired}))
	assert.Equal(t, "", Badge(nil))
}

func TestTrialProgress(t *testing.T) {
	assert.InDelta(t, 100.0, TrialProgress(7), 1e-9)
	assert.InDelta(t, 3.0/7*100, TrialProgress(3), 1e-9)
	assert.InDelta(t, 0.0, TrialProgress(0), 1e-9)
}

func TestUsageRatio(t *testing.T) {
	assert.InDelta(t, 50.0, UsageRatio(5, 10), 1e-9)
	assert.InDelta(t, 120.0, UsageRatio(12, 10), 1e-9)
	assert.InDelta(t, 0.0, UsageRatio(3, 0), 1e-9)
}
