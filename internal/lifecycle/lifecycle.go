// Package lifecycle описывает конечный автомат подписки ментора.
//
// Авторитетные переходы выполняет бэкенд (вебхуки Stripe, планировщик и команды
// cancel/reactivate). Клиент видит те же состояния только для чтения и после
// каждого действия перечитывает подписку, не меняя состояние локально.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// State наблюдаемое состояние подписки.
type State string

// Состояния автомата. Кроме статусов из БД есть псевдо-состояния клиента.
const (
	NoSubscription  State = "no-subscription"
	PendingPayment  State = "pending-payment"
	Trial           State = "trial"
	Active          State = "active"
	CancelScheduled State = "cancel-scheduled"
	Canceled        State = "canceled"
	Expired         State = "expired"
	Inactive        State = "inactive"
)

// Event событие, переводящее подписку в другое состояние.
type Event string

// События автомата.
const (
	SelectPlan        Event = "select-plan"
	ConfirmPayment    Event = "confirm-payment"
	PaymentNotNeeded  Event = "payment-not-needed"
	CancelImmediate   Event = "cancel-immediate"
	CancelAtPeriodEnd Event = "cancel-at-period-end"
	Reactivate        Event = "reactivate"
	PeriodElapsed     Event = "period-elapsed"
	TrialElapsed      Event = "trial-elapsed"
	PaymentFailed     Event = "payment-failed"
)

// ErrInvalidTransition возвращается, если событие недопустимо в текущем состоянии.
var ErrInvalidTransition = errors.New("invalid subscription transition")

type transition struct {
	from  State
	event Event
}

var transitions = map[transition]State{
	{NoSubscription, SelectPlan}: PendingPayment,
	{Trial, SelectPlan}:          PendingPayment,
	{Canceled, SelectPlan}:       PendingPayment,
	{Expired, SelectPlan}:        PendingPayment,
	{Inactive, SelectPlan}:       PendingPayment,
	{Active, SelectPlan}:         PendingPayment,

	{PendingPayment, ConfirmPayment}:   Active,
	{PendingPayment, PaymentNotNeeded}: Active,
	{PendingPayment, PaymentFailed}:    Inactive,

	{Active, CancelImmediate}:   Canceled,
	{Active, CancelAtPeriodEnd}: CancelScheduled,
	{Active, PaymentFailed}:     Inactive,

	{CancelScheduled, Reactivate}:      Active,
	{CancelScheduled, PeriodElapsed}:   Canceled,
	{CancelScheduled, CancelImmediate}: Canceled,

	{Trial, TrialElapsed}: Expired,
}

// Next возвращает состояние после события или ErrInvalidTransition.
func Next(from State, event Event) (State, error) {
	to, ok := transitions[transition{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// CanTransition сообщает, допустимо ли событие в состоянии.
func CanTransition(from State, event Event) bool {
	_, ok := transitions[transition{from, event}]
	return ok
}

// Observe переводит подписку в наблюдаемое состояние. nil означает отсутствие подписки.
func Observe(sub *models.Subscription) State {
	if sub == nil {
		return NoSubscription
	}
	if sub.CancelAtPeriodEnd && sub.Status == models.StatusActive {
		return CancelScheduled
	}
	switch sub.Status {
	case models.StatusActive:
		return Active
	case models.StatusTrial:
		return Trial
	case models.StatusCanceled:
		return Canceled
	case models.StatusExpired:
		return Expired
	default:
		return Inactive
	}
}

// StatusOf возвращает статус для хранения в БД для состояния автомата.
func StatusOf(s State) models.Status {
	switch s {
	case Active, CancelScheduled:
		return models.StatusActive
	case Trial:
		return models.StatusTrial
	case Canceled:
		return models.StatusCanceled
	case Expired:
		return models.StatusExpired
	default:
		return models.StatusInactive
	}
}
