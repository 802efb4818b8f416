// Package paymentprovider обращается к Stripe: покупатели, подписки, счета,
// платежные намерения и проверка подписи вебхуков.
package paymentprovider

import (
	"errors"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// Ошибки провайдера.
var (
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrNoSubscriptionItem = errors.New("subscription has no items")
	ErrBadClientSecret    = errors.New("malformed client secret")
)

// MetadataMentorID ключ метаданных Stripe с ID ментора.
const MetadataMentorID = "mentor_id"

// Subscription подписка Stripe в терминах биллинга.
type Subscription struct {
	ID                 string
	CustomerID         string
	MentorID           string
	Status             stripe.SubscriptionStatus
	PriceID            string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	// ClientSecret непуст, если первый или доплатный счет ждет подтверждения оплаты.
	ClientSecret string
}

// InvoiceEvent счет из вебхука вместе с покупателем, по которому ищется ментор.
type InvoiceEvent struct {
	CustomerID string
	Invoice    models.Invoice
}

// Event проверенное событие вебхука. Заполнено одно из полей Subscription или Invoice.
type Event struct {
	ID           string
	Type         string
	Subscription *Subscription
	Invoice      *InvoiceEvent
}

// IntentStatus статус платежного намерения.
type IntentStatus string

// Статусы, на которые реагирует клиент.
const (
	IntentSucceeded             IntentStatus = IntentStatus(stripe.PaymentIntentStatusSucceeded)
	IntentProcessing            IntentStatus = IntentStatus(stripe.PaymentIntentStatusProcessing)
	IntentRequiresPaymentMethod IntentStatus = IntentStatus(stripe.PaymentIntentStatusRequiresPaymentMethod)
)

// MapStatus переводит статус подписки Stripe в статус биллинга.
func MapStatus(s stripe.SubscriptionStatus) models.Status {
	switch s {
	case stripe.SubscriptionStatusActive:
		return models.StatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.StatusTrial
	case stripe.SubscriptionStatusCanceled:
		return models.StatusCanceled
	case stripe.SubscriptionStatusIncompleteExpired:
		return models.StatusExpired
	default:
		return models.StatusInactive
	}
}

// PaymentIntentID извлекает ID платежного намерения из client secret вида "pi_xxx_secret_yyy".
func PaymentIntentID(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || !strings.HasPrefix(id, "pi_") {
		return "", ErrBadClientSecret
	}
	return id, nil
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Message возвращает текст ошибки Stripe для показа пользователю или пустую строку,
// если err пришла не от Stripe.
func Message(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Msg
	}
	return ""
}
