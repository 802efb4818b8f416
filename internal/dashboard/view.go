package dashboard

import (
	"github.com/magabrotheeeer/rhmaster-billing/internal/lifecycle"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// Action действие, доступное на странице подписки.
type Action string

// Действия страницы.
const (
	ActionChoosePlan Action = "choose-plan"
	ActionUpgrade    Action = "upgrade"
	ActionCancel     Action = "cancel"
	ActionReactivate Action = "reactivate"
)

// View модель отображения страницы подписки.
type View struct {
	Loading       bool
	State         lifecycle.State
	Subscription  *models.Subscription
	Badge         string
	ShowTrial     bool
	TrialProgress float64
	ShowUsage     bool
	Usage         float64
	Actions       []Action
	Invoices      []models.Invoice
}

// NewView строит модель отображения. Без подписки показывается только предложение выбрать тариф.
func NewView(sub *models.Subscription, invoices []models.Invoice) View {
	state := lifecycle.Observe(sub)
	v := View{State: state, Subscription: sub}
	if sub == nil {
		v.Actions = []Action{ActionChoosePlan}
		return v
	}

	v.Badge = lifecycle.Badge(sub)
	v.ShowUsage = true
	v.Usage = lifecycle.UsageRatio(sub.ClientCount, sub.MaxClients)
	v.Invoices = invoices

	if sub.Status == models.StatusTrial {
		v.ShowTrial = true
		days := 0
		if sub.DaysRemaining != nil {
			days = *sub.DaysRemaining
		}
		v.TrialProgress = lifecycle.TrialProgress(days)
	}

	switch state {
	case lifecycle.Active:
		v.Actions = []Action{ActionUpgrade, ActionCancel}
	case lifecycle.CancelScheduled:
		v.Actions = []Action{ActionReactivate}
	default:
		v.Actions = []Action{ActionChoosePlan}
	}
	return v
}
