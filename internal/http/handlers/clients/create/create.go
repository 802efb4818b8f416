// Package create добавляет клиента ментора в пределах лимита тарифа.
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

// Service добавление клиента.
type Service interface {
	CreateClient(ctx context.Context, mentorID string, req models.CreateClientRequest) (*models.Client, error)
}

// Handler обработчик POST /api/clients.
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
// @Summary Добавить клиента
// @Description 403, если достигнут лимит клиентов тарифа.
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateClientRequest true "Клиент"
// @Success 201 {object} models.Client
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/clients [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.clients.create"

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

	var req models.CreateClientRequest
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

	client, err := h.service.CreateClient(r.Context(), mentorID, req)
	if err != nil {
		log.Error("failed to create client", sl.Mentor(mentorID), sl.Err(err))
		status, msg := apierr.Status(err, "could not create client")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("client created", sl.Mentor(mentorID), slog.Int64("client_id", client.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, client)
}
