// Package plans отдает витрину тарифов.
package plans

import (
	"net/http"

	"github.com/go-chi/render"

	catalog "github.com/magabrotheeeer/rhmaster-billing/internal/lib/plans"
)

// Service источник витрины тарифов.
type Service interface {
	Plans() catalog.Catalog
}

// Handler обработчик GET /api/subscription/plans.
type Handler struct {
	service Service
}

// New создает Handler.
func New(service Service) *Handler {
	return &Handler{service: service}
}

// ServeHTTP godoc
// @Summary Тарифы
// @Description Тарифы с ценами за месяц и год и расхождениями годовой цены.
// @Tags Subscription
// @Produce json
// @Success 200 {object} plans.Catalog
// @Router /api/subscription/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Plans())
}
