// Package current отдает текущую подписку ментора.
package current

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/apierr"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	services "github.com/magabrotheeeer/rhmaster-billing/internal/services/subscription"
)

// Service чтение подписки.
type Service interface {
	Current(ctx context.Context, mentorID string) (*models.Subscription, error)
}

// Handler обработчик GET /api/subscription/current-subscription.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Текущая подписка
// @Description Возвращает подписку ментора. 404 означает, что подписки нет.
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Subscription
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/subscription/current-subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.current"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	mentorID, ok := middlewarectx.MentorIDFrom(r.Context())
	if !ok {
		log.Error("mentor id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, err := h.service.Current(r.Context(), mentorID)
	if err != nil {
		status, msg := apierr.Status(err, "could not load subscription")
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			log.Info("subscription not found", sl.Mentor(mentorID))
		} else {
			log.Error("failed to load subscription", sl.Mentor(mentorID), sl.Err(err))
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, sub)
}
