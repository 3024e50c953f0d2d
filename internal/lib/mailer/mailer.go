// Package mailer выбирает способ доставки писем: SMTP, Postmark или очередь RabbitMQ.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/postmark"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/smtp"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// Mailer отправляет одно текстовое письмо.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Publisher публикует сообщение в обменник по ключу.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Queue ставит письмо в очередь mail.outgoing. Доставляет его сервис sender.
type Queue struct {
	pub Publisher
}

// NewQueue создаёт Mailer, публикующий письма в RabbitMQ.
func NewQueue(pub Publisher) *Queue {
	return &Queue{pub: pub}
}

// Send публикует письмо в очередь.
func (q *Queue) Send(ctx context.Context, to, subject, body string) error {
	const op = "mailer.Queue.Send"
	if err := q.pub.Publish(ctx, rabbitmq.RoutingMail, models.Mail{To: to, Subject: subject, Body: body}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// New создаёт Mailer прямой доставки по mail.provider.
func New(cfg *config.Config, log *slog.Logger) (Mailer, error) {
	const op = "mailer.New"
	switch cfg.Mail.Provider {
	case "", "smtp":
		return smtp.NewMailer(smtp.NewTransport(cfg.SMTP, log), log), nil
	case "postmark":
		m, err := postmark.New(cfg.Postmark, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%s: unknown mail provider %q", op, cfg.Mail.Provider)
	}
}
