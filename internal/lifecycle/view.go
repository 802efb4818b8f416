package lifecycle

import (
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// TrialLengthDays длина пробного периода, от которой считается прогресс.
const TrialLengthDays = 7

// Подписи бейджа статуса.
const (
	BadgeActive          = "Active"
	BadgeTrial           = "Trial"
	BadgeCanceled        = "Canceled"
	BadgeExpired         = "Expired"
	BadgeInactive        = "Inactive"
	BadgeCancelScheduled = "Cancellation Scheduled"
)

// Badge возвращает подпись бейджа. cancelAtPeriodEnd перекрывает обычное соответствие статусу.
func Badge(sub *models.Subscription) string {
	if sub == nil {
		return ""
	}
	if sub.CancelAtPeriodEnd {
		return BadgeCancelScheduled
	}
	switch sub.Status {
	case models.StatusActive:
		return BadgeActive
	case models.StatusTrial:
		return BadgeTrial
	case models.StatusCanceled:
		return BadgeCanceled
	case models.StatusExpired:
		return BadgeExpired
	default:
		return BadgeInactive
	}
}

// TrialProgress значение прогресс-бара пробного периода: daysRemaining/7*100.
func TrialProgress(daysRemaining int) float64 {
	return float64(daysRemaining) / TrialLengthDays * 100
}

// UsageRatio доля использованных клиентов в процентах. Лимит не ограничивает значение сверху.
func UsageRatio(clientCount, maxClients int) float64 {
	if maxClients <= 0 {
		return 0
	}
	return float64(clientCount) / float64(maxClients) * 100
}
