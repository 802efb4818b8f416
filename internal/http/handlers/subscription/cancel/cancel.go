// Package cancel отменяет подписку сразу или в конце оплаченного периода.
package cancel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/apierr"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// Service отмена подписки.
type Service interface {
	Cancel(ctx context.Context, mentorID string, req models.CancelRequest) (models.MessageResponse, error)
}

// Handler обработчик POST /api/subscription/cancel-subscription.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отменить подписку
// @Description cancelImmediate=true отменяет сразу, иначе в конце оплаченного периода.
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CancelRequest true "Причина и способ отмены"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/subscription/cancel-subscription [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

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

	var req models.CancelRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	resp, err := h.service.Cancel(r.Context(), mentorID, req)
	if err != nil {
		log.Error("failed to cancel subscription", sl.Mentor(mentorID), sl.Err(err))
		status, msg := apierr.Status(err, "could not cancel subscription")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("subscription canceled", sl.Mentor(mentorID), slog.Bool("immediate", req.CancelImmediate))
	render.JSON(w, r, resp)
}
