// Package create оформляет платную подписку.
//
// Ответ содержит либо clientSecret для подтверждения оплаты в Stripe,
// либо success, если оплата не потребовалась. Заголовок Idempotency-Key
// передается в сервис, повтор с тем же ключом возвращает первый результат.
package create

import (
	"context"
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

// IdempotencyHeader заголовок с ключом идемпотентности.
const IdempotencyHeader = "Idempotency-Key"

// Service оформление подписки.
type Service interface {
	Create(ctx context.Context, mentorID string, req models.ChangePlanRequest, idempotencyKey string) (models.ChangePlanResult, error)
}

// Handler обработчик POST /api/subscription/create-subscription.
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
// @Summary Оформить подписку
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Param request body models.ChangePlanRequest true "Тариф и цикл оплаты"
// @Success 200 {object} models.ChangePlanResult
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 402 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/subscription/create-subscription [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"

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

	var req models.ChangePlanRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	result, err := h.service.Create(r.Context(), mentorID, req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		log.Error("failed to create subscription", sl.Mentor(mentorID), sl.Err(err))
		status, msg := apierr.Status(err, "could not create subscription")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("subscription created", sl.Mentor(mentorID), slog.Bool("needs_payment", result.NeedsPayment()))
	render.JSON(w, r, result)
}
