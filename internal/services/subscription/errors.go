package services

import "errors"

// Ошибки сервиса подписок. Обработчики сопоставляют их с HTTP-статусами.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadySubscribed    = errors.New("subscription already exists")
	ErrNotCancelable        = errors.New("subscription cannot be canceled")
	ErrNotReactivatable     = errors.New("subscription is not scheduled for cancellation")
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrMutationInProgress   = errors.New("another subscription change is in progress")
	ErrClientLimitReached   = errors.New("client limit reached for current plan")
	ErrProvider             = errors.New("payment provider error")
)
