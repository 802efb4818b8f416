// Package health отвечает на проверку живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
)

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler обработчик GET /health.
type Handler struct {
	log     *slog.Logger
	pingers map[string]Pinger
}

// New создает Handler. pingers проверяются на каждый запрос.
func New(log *slog.Logger, pingers map[string]Pinger) *Handler {
	return &Handler{
		log:     log,
		pingers: pingers,
	}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} response.ErrorResponse
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	for name, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			h.log.Error("dependency unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error(name+" unavailable"))
			return
		}
	}

	render.JSON(w, r, map[string]string{"status": "ok"})
}
