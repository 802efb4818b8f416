// Package dashboard клиентские компоненты страницы подписки: чтение состояния,
// выбор тарифа, подтверждение оплаты, отмена и возобновление.
//
// Компоненты не меняют подписку локально. После каждого успешного действия
// состояние перечитывается с сервера ровно один раз.
package dashboard

import "errors"

// Notifier показывает пользователю всплывающие сообщения.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

// Ошибки, которыми компоненты отклоняют повторные действия.
var (
	ErrInFlight         = errors.New("action already in progress")
	ErrProviderNotReady = errors.New("payment provider is not ready")
	ErrPaymentComplete  = errors.New("payment already completed")
)

// Тексты сообщений.
const (
	msgLoadFailed        = "Failed to load subscription"
	msgInvoicesFailed    = "Failed to load invoices"
	msgSubscriptionReady = "Subscription activated successfully!"
	msgPlanChanged       = "Subscription updated successfully"
	msgPlanFailed        = "Failed to update subscription"
	msgPaymentSucceeded  = "Payment succeeded!"
	msgPaymentProcessing = "Your payment is processing."
	msgPaymentFailed     = "Something went wrong."
	msgCancelFailed      = "Failed to cancel subscription"
	msgReactivateFailed  = "Failed to reactivate subscription"
)
