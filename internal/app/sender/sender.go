// Package sender собирает сервис доставки писем из очередей RabbitMQ.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/mailer"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	senderservice "github.com/magabrotheeeer/vpn-subscription/internal/services/sender"
)

// App представляет приложение рассылки.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и создаёт Mailer по mail.provider.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	m, err := mailer.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.New(m, cfg.Payment.ReturnURL, logger),
		logger:        logger,
	}, nil
}

// Run читает очереди писем и уведомлений до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rabbitmq.ConsumerMessage(gctx, a.ch, rabbitmq.QueueMail, a.logger, func(body []byte) error {
			return a.senderService.HandleMail(gctx, body)
		})
	})
	g.Go(func() error {
		return rabbitmq.ConsumerMessage(gctx, a.ch, rabbitmq.QueueExpiring, a.logger, func(body []byte) error {
			return a.senderService.HandleExpiring(gctx, body)
		})
	})

	err := g.Wait()
	a.logger.Info("sender service shutting down gracefully")

	if cerr := a.ch.Close(); cerr != nil {
		a.logger.Error("failed to close channel", sl.Err(cerr))
	}
	if cerr := a.conn.Close(); cerr != nil {
		a.logger.Error("failed to close connection", sl.Err(cerr))
	}
	return err
}
