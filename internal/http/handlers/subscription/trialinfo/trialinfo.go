// Package trialinfo отдает состояние пробного периода.
package trialinfo

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

// Service чтение пробного периода.
type Service interface {
	TrialInfo(ctx context.Context, mentorID string) (*models.TrialInfo, error)
}

// Handler обработчик GET /api/subscription/trial-info.
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
// @Summary Пробный период
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.TrialInfo
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/subscription/trial-info [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.trialinfo"

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

	info, err := h.service.TrialInfo(r.Context(), mentorID)
	if err != nil {
		log.Error("failed to load trial info", sl.Mentor(mentorID), sl.Err(err))
		status, msg := apierr.Status(err, "could not load trial info")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, info)
}
