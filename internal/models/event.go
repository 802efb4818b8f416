package models

import "time"

// EventType тип события жизненного цикла подписки, публикуемого в RabbitMQ.
type EventType string

// События жизненного цикла.
const (
	EventSubscriptionActivated   EventType = "subscription.activated"
	EventSubscriptionUpdated     EventType = "subscription.updated"
	EventSubscriptionCancelSched EventType = "subscription.cancel_scheduled"
	EventSubscriptionReactivated EventType = "subscription.reactivated"
	EventSubscriptionCanceled    EventType = "subscription.canceled"
	EventTrialEnding             EventType = "trial.ending"
	EventTrialExpired            EventType = "trial.expired"
	EventInvoicePaid             EventType = "invoice.paid"
	EventInvoicePaymentFailed    EventType = "invoice.payment_failed"
)

// LifecycleEvent сообщение о смене состояния подписки для сервиса уведомлений.
type LifecycleEvent struct {
	Type       EventType  `json:"type"`
	MentorID   string     `json:"mentorId"`
	Email      string     `json:"email,omitempty"`
	Name       string     `json:"name,omitempty"`
	Plan       PlanID     `json:"plan,omitempty"`
	Status     Status     `json:"status,omitempty"`
	PeriodEnd  *time.Time `json:"periodEnd,omitempty"`
	AmountDue  int64      `json:"amountDue,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// ExpiringTrial пробный период, который скоро закончится или уже закончился.
type ExpiringTrial struct {
	SubscriptionID int64
	MentorID       string
	Email          string
	Name           string
	Plan           PlanID
	TrialEndDate   time.Time
}
