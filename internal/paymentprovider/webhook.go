package paymentprovider

import (
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Типы событий Stripe, которые обрабатывает биллинг.
const (
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventInvoiceFinalized     = "invoice.finalized"
)

// ParseWebhook проверяет подпись и разбирает событие. Для неизвестных типов
// возвращает событие без Subscription и Invoice.
func (p *Stripe) ParseWebhook(payload []byte, signature string) (*Event, error) {
	const op = "paymentprovider.ParseWebhook"
	raw, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	ev := &Event{ID: raw.ID, Type: string(raw.Type)}
	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(raw.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%s: parse subscription: %w", op, err)
		}
		ev.Subscription = convertSubscription(&s)
	case EventInvoicePaid, EventInvoicePaymentFailed, EventInvoiceFinalized:
		var inv stripe.Invoice
		if err := json.Unmarshal(raw.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%s: parse invoice: %w", op, err)
		}
		ie := &InvoiceEvent{Invoice: convertInvoice(&inv)}
		if inv.Customer != nil {
			ie.CustomerID = inv.Customer.ID
		}
		ev.Invoice = ie
	}
	return ev, nil
}
