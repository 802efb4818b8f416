package paymentprovider

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// Confirmer подтверждает платежные намерения по client secret.
// Работает с публикуемым ключом, поэтому пригоден для клиентской стороны.
type Confirmer struct{}

// NewConfirmer задает ключ Stripe процесса. В одном процессе с серверным
// Stripe не используется.
func NewConfirmer(publishableKey string) *Confirmer {
	stripe.Key = publishableKey
	return &Confirmer{}
}

// Ready сообщает, что провайдер настроен.
func (c *Confirmer) Ready() bool {
	return stripe.Key != ""
}

// Status возвращает текущий статус платежного намерения.
func (c *Confirmer) Status(ctx context.Context, clientSecret string) (IntentStatus, error) {
	const op = "paymentprovider.Status"
	id, err := PaymentIntentID(clientSecret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return IntentStatus(pi.Status), nil
}

// Confirm подтверждает оплату способом paymentMethodID. После внешнего
// подтверждения (3-D Secure) Stripe вернет пользователя на returnURL.
func (c *Confirmer) Confirm(ctx context.Context, clientSecret, paymentMethodID, returnURL string) (IntentStatus, error) {
	const op = "paymentprovider.Confirm"
	id, err := PaymentIntentID(clientSecret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
		ReturnURL:     stripe.String(returnURL),
	}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)

	pi, err := paymentintent.Confirm(id, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return IntentStatus(pi.Status), nil
}
