// Package register регистрирует ментора и запускает пробный период.
package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	services "github.com/magabrotheeeer/rhmaster-billing/internal/services/auth"
)

// Service регистрация ментора.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
}

// Handler обработчик POST /api/auth/register.
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
// @Summary Регистрация ментора
// @Description Создает ментора и пробную подписку, возвращает JWT.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Данные ментора"
// @Success 201 {object} models.AuthResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
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
	log.Info("all fields are validated")

	resp, err := h.service.Register(r.Context(), req)
	if errors.Is(err, services.ErrEmailTaken) {
		log.Warn("email already registered")
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("email already registered"))
		return
	}
	if err != nil {
		log.Error("failed to register mentor", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register"))
		return
	}

	log.Info("mentor registered", sl.Mentor(resp.MentorID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}
