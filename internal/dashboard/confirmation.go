package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
)

// PaymentConfirmer платежный провайдер на стороне клиента.
type PaymentConfirmer interface {
	Ready() bool
	Status(ctx context.Context, clientSecret string) (paymentprovider.IntentStatus, error)
	Confirm(ctx context.Context, clientSecret, paymentMethodID, returnURL string) (paymentprovider.IntentStatus, error)
}

// CheckResult итог разовой проверки платежа.
type CheckResult int

// Оплата либо прошла, либо еще нет.
const (
	CheckPending CheckResult = iota
	CheckSucceeded
)

// Confirmation подтверждение оплаты по client secret.
type Confirmation struct {
	confirmer    PaymentConfirmer
	notify       Notifier
	log          *slog.Logger
	clientSecret string
	plan         models.PlanID
	returnURL    string
	onSuccess    func()
	onError      func(error)

	mu       sync.Mutex
	inFlight bool
	complete bool
}

// NewConfirmation создает Confirmation. returnBase адрес страницы настроек, на который
// провайдер вернет пользователя после внешнего подтверждения.
func NewConfirmation(
	confirmer PaymentConfirmer,
	notify Notifier,
	log *slog.Logger,
	clientSecret string,
	plan models.PlanID,
	returnBase string,
	onSuccess func(),
	onError func(error),
) *Confirmation {
	if onSuccess == nil {
		onSuccess = func() {}
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Confirmation{
		confirmer:    confirmer,
		notify:       notify,
		log:          log,
		clientSecret: clientSecret,
		plan:         plan,
		returnURL:    returnURL(returnBase, plan),
		onSuccess:    onSuccess,
		onError:      onError,
	}
}

// ReturnURL адрес возврата с параметрами успеха и тарифа.
func (c *Confirmation) ReturnURL() string {
	return c.returnURL
}

// Complete сообщает, что оплата подтверждена.
func (c *Confirmation) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.complete
}

// CheckOnce однократно запрашивает статус платежа.
func (c *Confirmation) CheckOnce(ctx context.Context) (CheckResult, error) {
	const op = "dashboard.Confirmation.CheckOnce"

	status, err := c.confirmer.Status(ctx, c.clientSecret)
	if err != nil {
		c.log.Error("failed to check payment intent", sl.Op(op), sl.Err(err))
		c.notify.Error(msgPaymentFailed)
		return CheckPending, fmt.Errorf("%s: %w", op, err)
	}

	switch status {
	case paymentprovider.IntentSucceeded:
		c.succeed()
		return CheckSucceeded, nil
	case paymentprovider.IntentProcessing:
		c.notify.Info(msgPaymentProcessing)
	case paymentprovider.IntentRequiresPaymentMethod:
	default:
		c.notify.Error(msgPaymentFailed)
	}
	return CheckPending, nil
}

// Submit подтверждает оплату способом paymentMethodID. Отклоняется, пока провайдер
// не готов, пока идет предыдущая отправка и после успешной оплаты.
func (c *Confirmation) Submit(ctx context.Context, paymentMethodID string) error {
	const op = "dashboard.Confirmation.Submit"

	if !c.confirmer.Ready() {
		return ErrProviderNotReady
	}

	c.mu.Lock()
	switch {
	case c.complete:
		c.mu.Unlock()
		return ErrPaymentComplete
	case c.inFlight:
		c.mu.Unlock()
		return ErrInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	status, err := c.confirmer.Confirm(ctx, c.clientSecret, paymentMethodID, c.returnURL)
	if err != nil {
		c.log.Error("failed to confirm payment", sl.Op(op), slog.String("plan", string(c.plan)), sl.Err(err))
		msg := paymentprovider.Message(err)
		if msg == "" {
			msg = msgPaymentFailed
		}
		c.notify.Error(msg)
		c.onError(err)
		return fmt.Errorf("%s: %w", op, err)
	}

	switch status {
	case paymentprovider.IntentSucceeded:
		c.succeed()
	case paymentprovider.IntentProcessing:
		c.notify.Info(msgPaymentProcessing)
	}
	return nil
}

func (c *Confirmation) succeed() {
	c.mu.Lock()
	already := c.complete
	c.complete = true
	c.mu.Unlock()
	if already {
		return
	}
	c.notify.Success(msgPaymentSucceeded)
	c.onSuccess()
}

func returnURL(base string, plan models.PlanID) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(SuccessParam, "true")
	q.Set("plan", string(plan))
	u.RawQuery = q.Encode()
	return u.String()
}
