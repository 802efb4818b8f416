package paymentprovider

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// Stripe реализует операции биллинга через API Stripe.
type Stripe struct {
	webhookSecret string
}

// NewStripe задает ключ API для процесса и возвращает провайдера.
// Ключ общий для всего процесса, поэтому провайдер создается один раз при старте.
func NewStripe(secretKey, webhookSecret string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{webhookSecret: webhookSecret}
}

// CreateCustomer создает покупателя Stripe для ментора.
func (p *Stripe) CreateCustomer(ctx context.Context, mentorID, email, name string) (string, error) {
	const op = "paymentprovider.CreateCustomer"
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(MetadataMentorID, mentorID)
	params.SetIdempotencyKey("customer-" + mentorID)

	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return c.ID, nil
}

// CreateSubscription создает подписку в статусе incomplete. Первый счет
// возвращается с client secret, который подтверждает клиент.
func (p *Stripe) CreateSubscription(ctx context.Context, mentorID, customerID, priceID, idempotencyKey string) (*Subscription, error) {
	const op = "paymentprovider.CreateSubscription"
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataMentorID, mentorID)
	params.AddExpand("latest_invoice.confirmation_secret")
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	s, err := subscription.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return convertSubscription(s), nil
}

// ChangePrice меняет цену подписки. Разница выставляется отдельным счетом сразу,
// пропорциональный пересчет делает Stripe.
func (p *Stripe) ChangePrice(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*Subscription, error) {
	const op = "paymentprovider.ChangePrice"

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	current, err := subscription.Get(subscriptionID, getParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSubscriptionItem)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(current.Items.Data[0].ID), Price: stripe.String(priceID)},
		},
		ProrationBehavior: stripe.String("always_invoice"),
		PaymentBehavior:   stripe.String("default_incomplete"),
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.confirmation_secret")
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	s, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return convertSubscription(s), nil
}

// Cancel немедленно отменяет подписку.
func (p *Stripe) Cancel(ctx context.Context, subscriptionID, reason string) (*Subscription, error) {
	const op = "paymentprovider.Cancel"
	params := &stripe.SubscriptionCancelParams{}
	if reason != "" {
		params.CancellationDetails = &stripe.SubscriptionCancelCancellationDetailsParams{
			Comment: stripe.String(reason),
		}
	}
	params.Context = ctx

	s, err := subscription.Cancel(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return convertSubscription(s), nil
}

// SetCancelAtPeriodEnd включает или снимает отмену в конце оплаченного периода.
func (p *Stripe) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool, reason string) (*Subscription, error) {
	const op = "paymentprovider.SetCancelAtPeriodEnd"
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx
	if cancel && reason != "" {
		params.AddMetadata("cancel_reason", reason)
	}

	s, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return convertSubscription(s), nil
}

// ListInvoices возвращает счета покупателя из Stripe.
func (p *Stripe) ListInvoices(ctx context.Context, customerID string) ([]models.Invoice, error) {
	const op = "paymentprovider.ListInvoices"
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var res []models.Invoice
	it := invoice.List(params)
	for it.Next() {
		res = append(res, convertInvoice(it.Invoice()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func convertSubscription(s *stripe.Subscription) *Subscription {
	res := &Subscription{
		ID:                s.ID,
		Status:            s.Status,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CanceledAt:        unixTime(s.CanceledAt),
		MentorID:          s.Metadata[MetadataMentorID],
	}
	if s.Customer != nil {
		res.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		if item.Price != nil {
			res.PriceID = item.Price.ID
		}
		res.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		res.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	if inv := s.LatestInvoice; inv != nil && inv.Status == stripe.InvoiceStatusOpen &&
		inv.AmountDue > 0 && inv.ConfirmationSecret != nil {
		res.ClientSecret = inv.ConfirmationSecret.ClientSecret
	}
	return res
}

func convertInvoice(inv *stripe.Invoice) models.Invoice {
	res := models.Invoice{
		ID:         inv.ID,
		Number:     inv.Number,
		Status:     string(inv.Status),
		AmountDue:  inv.AmountDue,
		AmountPaid: inv.AmountPaid,
		Currency:   string(inv.Currency),
		ReceiptURL: optString(inv.HostedInvoiceURL),
		PDF:        optString(inv.InvoicePDF),
	}
	if t := unixTime(inv.Created); t != nil {
		res.Created = *t
	}
	if t := unixTime(inv.PeriodStart); t != nil {
		res.PeriodStart = *t
	}
	if t := unixTime(inv.PeriodEnd); t != nil {
		res.PeriodEnd = *t
	}
	return res
}
