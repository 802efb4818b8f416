// Package reactivate снимает запланированную отмену подписки.
package reactivate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/apierr"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// Service возобновление подписки.
type Service interface {
	Reactivate(ctx context.Context, mentorID string) (models.MessageResponse, error)
}

// Handler обработчик POST /api/subscription/reactivate-subscription.
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
// @Summary Возобновить подписку
// @Description Доступно, только пока отмена запланирована на конец периода.
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/subscription/reactivate-subscription [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.reactivate"

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

	resp, err := h.service.Reactivate(r.Context(), mentorID)
	if err != nil {
		log.Error("failed to reactivate subscription", sl.Mentor(mentorID), sl.Err(err))
		status, msg := apierr.Status(err, "could not reactivate subscription")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("subscription reactivated", sl.Mentor(mentorID))
	render.JSON(w, r, resp)
}
