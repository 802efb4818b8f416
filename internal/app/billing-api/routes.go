package billingapi

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация спецификации swagger.
	_ "github.com/magabrotheeeer/rhmaster-billing/docs"
	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/auth/register"
	clientcreate "github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/clients/create"
	clientlist "github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/clients/list"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/health"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/current"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/invoices"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/plans"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/reactivate"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/trialinfo"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/update"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/handlers/subscription/webhook"
	"github.com/magabrotheeeer/rhmaster-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rhmaster-billing/internal/metrics"
)

// SubscriptionService все операции с подпиской, которые нужны маршрутам.
type SubscriptionService interface {
	current.Service
	trialinfo.Service
	invoices.Service
	plans.Service
	create.Service
	update.Service
	cancel.Service
	reactivate.Service
	webhook.Service
}

// ClientService операции с клиентами ментора.
type ClientService interface {
	clientcreate.Service
	clientlist.Service
}

// AuthService регистрация и вход.
type AuthService interface {
	register.Service
	login.Service
}

// Pinger зависимость для /health.
type Pinger = health.Pinger

// Dependencies сервисы и настройки, из которых собираются маршруты.
type Dependencies struct {
	Subscriptions SubscriptionService
	Clients       ClientService
	Auth          AuthService
	Tokens        middlewarectx.TokenParser
	Metrics       *metrics.Metrics
	Limiter       config.HTTPServer
	Pingers       map[string]Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Dependencies) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.MetricsMiddleware(deps.Metrics),
	)

	limiter := middlewarectx.RateLimitMiddleware(
		middlewarectx.NewRateLimiter(deps.Limiter.RateLimit, deps.Limiter.RateBurst), logger)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(limiter)
			r.Post("/auth/register", register.New(logger, deps.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, deps.Auth).ServeHTTP)
		})
		r.Get("/subscription/plans", plans.New(deps.Subscriptions).ServeHTTP)

		// Вебхук Stripe проверяется подписью, а не JWT
		r.Post("/subscription/webhook", webhook.New(logger, deps.Subscriptions).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))
			r.Use(limiter)

			r.Get("/subscription/current-subscription", current.New(logger, deps.Subscriptions).ServeHTTP)
			r.Get("/subscription/trial-info", trialinfo.New(logger, deps.Subscriptions).ServeHTTP)
			r.Get("/subscription/invoices", invoices.New(logger, deps.Subscriptions).ServeHTTP)
			r.Post("/subscription/create-subscription", create.New(logger, deps.Subscriptions).ServeHTTP)
			r.Post("/subscription/update-subscription", update.New(logger, deps.Subscriptions).ServeHTTP)
			r.Post("/subscription/cancel-subscription", cancel.New(logger, deps.Subscriptions).ServeHTTP)
			r.Post("/subscription/reactivate-subscription", reactivate.New(logger, deps.Subscriptions).ServeHTTP)

			r.Post("/clients", clientcreate.New(logger, deps.Clients).ServeHTTP)
			r.Get("/clients", clientlist.New(logger, deps.Clients).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, deps.Pingers).ServeHTTP)
	r.Handle("/metrics", deps.Metrics.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
