// Package vpnserver собирает HTTP API: хранилище, кэш, сервисы и маршруты.
package vpnserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/jonboulle/clockwork"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-subscription/internal/cache"
	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/handlers/health"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/jwt"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/mailer"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/migrations"
	"github.com/magabrotheeeer/vpn-subscription/internal/paymentprovider"
	"github.com/magabrotheeeer/vpn-subscription/internal/provisioner"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/admin"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/auth"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/device"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/payment"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/subscription"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/vpn"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-сервер API подписок.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает зависимости, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "vpnserver.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{logger: logger, db: db, cache: cacheRedis}

	mail, err := app.newMailer(ctx, cfg)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	clock := clockwork.NewRealClock()

	subscriptionService := subscription.New(db, cacheRedis, clock, logger, subscription.Durations{
		TrialDays: cfg.Subscription.TrialDays,
		PaidDays:  cfg.Subscription.PaidPeriodDays,
	}, cfg.Subscription.CacheTTL)

	deviceService := device.New(db, clock, logger, device.Limits{
		Base:     cfg.Device.BaseLimit,
		Elevated: cfg.Device.ElevatedLimit,
	})

	authService := auth.New(
		db,
		mail,
		provisioner.New(cfg.VPN, logger),
		subscriptionService,
		deviceService,
		jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, clock),
		clock,
		logger,
		auth.Options{
			CodeTTL:           cfg.Subscription.CodeTTL,
			SkipTrialOnSignup: cfg.Subscription.SkipTrialOnSignup,
		},
	)

	paymentService := payment.New(db, paymentprovider.NewClient(cfg.Payment), subscriptionService, clock, logger, payment.Options{
		Amount:    cfg.Payment.Amount,
		Currency:  cfg.Payment.Currency,
		Methods:   cfg.Payment.Methods,
		ReturnURL: cfg.Payment.ReturnURL,
	})
	paymentService.SetNotifier(payment.NewMailNotifier(db, mail))

	if cfg.Payment.WebhookSecret == "" {
		logger.Warn("payment webhook signature check is disabled")
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Auth:          authService,
		Subscriptions: subscriptionService,
		Devices:       deviceService,
		Payments:      paymentService,
		VPN:           vpn.New(db, subscriptionService, cfg.VPN),
		Admin:         admin.New(db, subscriptionService, clock, logger),
		Health:        map[string]health.Pinger{"postgres": db, "redis": cacheRedis},
	}, RouteOptions{
		WebhookSecret: cfg.Payment.WebhookSecret,
		Limiter:       middlewarectx.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// newMailer возвращает очередь RabbitMQ при mail.queue, иначе прямую доставку.
func (a *App) newMailer(ctx context.Context, cfg *config.Config) (mailer.Mailer, error) {
	if !cfg.Mail.Queue {
		return mailer.New(cfg, a.logger)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.conn, a.ch = conn, ch
	return mailer.NewQueue(rabbitmq.NewPublisher(ch)), nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
