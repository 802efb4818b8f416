// Package list отдает клиентов ментора.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// Service чтение клиентов.
type Service interface {
	ListClients(ctx context.Context, mentorID string) ([]models.Client, error)
}

// Handler обработчик GET /api/clients.
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
// @Summary Клиенты ментора
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Client
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/clients [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.clients.list"

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

	clients, err := h.service.ListClients(r.Context(), mentorID)
	if err != nil {
		log.Error("failed to list clients", sl.Mentor(mentorID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list clients"))
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}

	render.JSON(w, r, clients)
}
