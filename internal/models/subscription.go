// Package models содержит доменные структуры биллинга: подписку ментора, счета,
// информацию о пробном периоде, а также DTO запросов и ответов REST API.
package models

import "time"

// PlanID идентификатор тарифа.
type PlanID string

// Тарифы RH Master.
const (
	PlanBasic      PlanID = "basic"
	PlanPro        PlanID = "pro"
	PlanEnterprise PlanID = "enterprise"
)

// Status статус жизненного цикла подписки.
type Status string

// Статусы подписки, которые хранит бэкенд.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusTrial    Status = "trial"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Valid сообщает, является ли статус одним из известных.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusTrial, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// BillingCycle цикл оплаты.
type BillingCycle string

// Циклы оплаты.
const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

// Subscription представляет подписку ментора.
// Поля без omitempty составляют контракт GET current-subscription.
type Subscription struct {
	ID                     int64        `json:"id"`
	MentorID               string       `json:"mentorId"`
	Plan                   PlanID       `json:"plan" validate:"required,oneof=basic pro enterprise"`
	Status                 Status       `json:"status" validate:"required,oneof=active inactive trial canceled expired"`
	BillingCycle           BillingCycle `json:"billingCycle,omitempty"`
	MaxClients             int          `json:"maxClients" validate:"gte=0"`
	ClientCount            int          `json:"clientCount" validate:"gte=0"`
	StartDate              time.Time    `json:"startDate" validate:"required"`
	EndDate                *time.Time   `json:"endDate,omitempty"`
	CurrentPeriodEnd       *time.Time   `json:"currentPeriodEnd,omitempty"`
	TrialEndDate           *time.Time   `json:"trialEndDate,omitempty"`
	CanceledAt             *time.Time   `json:"canceledAt,omitempty"`
	AutoRenew              bool         `json:"autoRenew"`
	CancelAtPeriodEnd      bool         `json:"cancelAtPeriodEnd"`
	DaysRemaining          *int         `json:"daysRemaining,omitempty"`
	ProviderCustomerID     string       `json:"-"`
	ProviderSubscriptionID string       `json:"-"`
	UpdatedAt              time.Time    `json:"updatedAt"`
}

// TrialDaysRemainingAt возвращает количество оставшихся дней пробного периода на момент now.
// Неполный день округляется вверх. Вне пробного периода возвращает 0.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if s.Status != StatusTrial || s.TrialEndDate == nil {
		return 0
	}
	remaining := s.TrialEndDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// TrialInfo ответ GET trial-info.
type TrialInfo struct {
	IsTrialActive         bool       `json:"isTrialActive"`
	DaysRemaining         int        `json:"daysRemaining"`
	TrialEndDate          *time.Time `json:"trialEndDate"`
	HasActiveSubscription bool       `json:"hasActiveSubscription"`
	Plan                  *PlanID    `json:"plan,omitempty"`
}

// ChangePlanRequest тело create-subscription и update-subscription.
type ChangePlanRequest struct {
	PlanID       PlanID       `json:"planId" validate:"required,oneof=basic pro enterprise"`
	BillingCycle BillingCycle `json:"billingCycle,omitempty" validate:"omitempty,oneof=monthly annual"`
}

// ChangePlanResult ответ create-subscription и update-subscription:
// либо ClientSecret для подтверждения оплаты, либо Success.
type ChangePlanResult struct {
	ClientSecret string `json:"clientSecret,omitempty"`
	Success      bool   `json:"success,omitempty"`
}

// NeedsPayment сообщает, что клиенту нужно подтвердить оплату.
func (r ChangePlanResult) NeedsPayment() bool {
	return r.ClientSecret != ""
}

// CancelRequest тело cancel-subscription.
type CancelRequest struct {
	Reason          *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
	CancelImmediate bool    `json:"cancelImmediate"`
}

// MessageResponse ответ cancel-subscription и reactivate-subscription.
type MessageResponse struct {
	Message string `json:"message" validate:"required"`
}

// Cancellation запись об отмене подписки с причиной.
type Cancellation struct {
	SubscriptionID int64
	MentorID       string
	Reason         string
	Immediate      bool
	CreatedAt      time.Time
}
