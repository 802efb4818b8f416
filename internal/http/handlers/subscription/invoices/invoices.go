// Package invoices отдает историю счетов ментора.
package invoices

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

// Service чтение счетов.
type Service interface {
	Invoices(ctx context.Context, mentorID string) ([]models.Invoice, error)
}

// Handler обработчик GET /api/subscription/invoices.
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
// @Summary История счетов
// @Description Счета от новых к старым. Пустой список, если счетов нет.
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Invoice
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/subscription/invoices [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.invoices"

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

	list, err := h.service.Invoices(r.Context(), mentorID)
	if err != nil {
		log.Error("failed to list invoices", sl.Mentor(mentorID), sl.Err(err))
		status, msg := apierr.Status(err, "could not load invoices")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}
	if list == nil {
		list = []models.Invoice{}
	}

	log.Info("invoices listed", slog.Int("count", len(list)))
	render.JSON(w, r, list)
}
