package vpnserver

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/vpn-subscription/docs"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/admin/grant"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/admin/level"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/admin/users"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/auth/forgot"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/auth/reset"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/auth/validate"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/auth/verify"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/device/add"
	devicelist "github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/device/list"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/device/remove"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/device/touch"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/health"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/payment/paymentcreate"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/subscription/status"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/subscription/trial"
	vpnconfig "github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/vpn/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-subscription/internal/metrics"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/admin"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/auth"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/device"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/payment"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/subscription"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/vpn"
)

// Services сервисы, которые обслуживает HTTP API.
type Services struct {
	Auth          *auth.Service
	Subscriptions *subscription.Service
	Devices       *device.Service
	Payments      *payment.Service
	VPN           *vpn.Service
	Admin         *admin.Service
	Health        map[string]health.Pinger
}

// RouteOptions параметры маршрутов из конфигурации.
type RouteOptions struct {
	WebhookSecret string
	Limiter       *middlewarectx.IPRateLimiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services, opts RouteOptions) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки с ограничением частоты по IP
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(opts.Limiter, logger))
			r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/verify", verify.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/forgot", forgot.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/reset", reset.New(logger, s.Auth).ServeHTTP)
		})

		// Webhook платёжного шлюза, проверяется подписью
		r.Post("/payments/webhook", paymentwebhook.New(logger, s.Payments, opts.WebhookSecret).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Get("/auth/validate", validate.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/logout", logout.New(logger, s.Auth).ServeHTTP)

			r.Get("/subscription", status.New(logger, s.Subscriptions, s.Devices).ServeHTTP)
			r.Post("/subscription/trial", trial.New(logger, s.Subscriptions).ServeHTTP)

			r.Get("/devices", devicelist.New(logger, s.Devices).ServeHTTP)
			r.Post("/devices", add.New(logger, s.Devices).ServeHTTP)
			r.Delete("/devices/{token}", remove.New(logger, s.Devices).ServeHTTP)
			r.Post("/devices/{token}/touch", touch.New(logger, s.Devices).ServeHTTP)

			r.Post("/payments", paymentcreate.New(logger, s.Payments).ServeHTTP)
			r.Get("/payments", paymentlist.New(logger, s.Payments).ServeHTTP)

			// Конфигурация выдаётся только при действующей подписке
			r.With(middlewarectx.SubscriptionStatusMiddleware(logger)).
				Get("/vpn/config", vpnconfig.New(logger, s.VPN).ServeHTTP)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))
				r.Get("/users", users.New(logger, s.Admin).ServeHTTP)
				r.Post("/users/{id}/grant", grant.New(logger, s.Admin).ServeHTTP)
				r.Put("/users/{id}/level", level.New(logger, s.Admin).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, s.Health).ServeHTTP)
	r.Handle("/metrics", metrics.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
