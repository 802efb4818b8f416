// Package apierr сопоставляет ошибки сервисов биллинга с HTTP-статусами и текстом ответа.
package apierr

import (
	"errors"
	"net/http"

	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
	services "github.com/magabrotheeeer/rhmaster-billing/internal/services/subscription"
)

// Status возвращает HTTP-статус и сообщение для ошибки сервиса подписок.
// Неизвестные ошибки отдаются как 500 с fallback.
func Status(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, services.ErrSubscriptionNotFound):
		return http.StatusNotFound, services.ErrSubscriptionNotFound.Error()
	case errors.Is(err, services.ErrAlreadySubscribed):
		return http.StatusConflict, services.ErrAlreadySubscribed.Error()
	case errors.Is(err, services.ErrMutationInProgress):
		return http.StatusConflict, services.ErrMutationInProgress.Error()
	case errors.Is(err, services.ErrNotCancelable):
		return http.StatusBadRequest, services.ErrNotCancelable.Error()
	case errors.Is(err, services.ErrNotReactivatable):
		return http.StatusBadRequest, services.ErrNotReactivatable.Error()
	case errors.Is(err, services.ErrUnknownPlan):
		return http.StatusBadRequest, services.ErrUnknownPlan.Error()
	case errors.Is(err, services.ErrClientLimitReached):
		return http.StatusForbidden, services.ErrClientLimitReached.Error()
	case errors.Is(err, services.ErrProvider):
		if msg := paymentprovider.Message(err); msg != "" {
			return http.StatusPaymentRequired, msg
		}
		return http.StatusBadGateway, services.ErrProvider.Error()
	}
	return http.StatusInternalServerError, fallback
}
