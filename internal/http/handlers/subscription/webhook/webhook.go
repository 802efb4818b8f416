// Package webhook принимает вебхуки Stripe.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
)

// SignatureHeader заголовок с подписью Stripe.
const SignatureHeader = "Stripe-Signature"

// maxBodyBytes ограничение Stripe на размер тела вебхука.
const maxBodyBytes = 65536

// Service обработка события Stripe.
type Service interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Handler обработчик POST /api/subscription/webhook.
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
// @Summary Вебхук Stripe
// @Description Проверяет подпись и применяет событие. Повторные события игнорируются.
// @Tags Webhook
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись Stripe"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/subscription/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request"))
		return
	}

	if err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader)); err != nil {
		if errors.Is(err, paymentprovider.ErrInvalidSignature) {
			log.Warn("webhook signature rejected", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
		log.Error("failed to handle webhook", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not process webhook"))
		return
	}

	render.JSON(w, r, map[string]bool{"received": true})
}
