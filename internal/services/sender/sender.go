// Package sender доставляет письма и уведомления из очередей RabbitMQ.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/metrics"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

const endDateLayout = "02.01.2006 15:04 MST"

// Mailer непосредственная доставка письма.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service обработчик сообщений очередей.
type Service struct {
	mailer     Mailer
	paymentURL string
	log        *slog.Logger
}

// New создаёт Service. paymentURL подставляется в уведомления о продлении.
func New(mailer Mailer, paymentURL string, log *slog.Logger) *Service {
	return &Service{mailer: mailer, paymentURL: paymentURL, log: log}
}

// HandleMail доставляет письмо из очереди mail.outgoing.
// Некорректное сообщение отбрасывается: повторная доставка его не исправит.
func (s *Service) HandleMail(ctx context.Context, body []byte) error {
	const op = "sender.HandleMail"
	log := s.log.With(slog.String("op", op))

	var msg models.Mail
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error("dropping malformed mail message", sl.Err(err))
		metrics.RecordNotification(rabbitmq.QueueMail, "dropped")
		return nil
	}
	if strings.TrimSpace(msg.To) == "" {
		log.Error("dropping mail message", slog.String("reason", "empty recipient"))
		metrics.RecordNotification(rabbitmq.QueueMail, "dropped")
		return nil
	}
	return s.deliver(ctx, op, rabbitmq.QueueMail, msg)
}

// HandleExpiring отправляет уведомление о скором окончании периода.
func (s *Service) HandleExpiring(ctx context.Context, body []byte) error {
	const op = "sender.HandleExpiring"
	log := s.log.With(slog.String("op", op))

	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		log.Error("dropping malformed notification", sl.Err(err))
		metrics.RecordNotification(rabbitmq.QueueExpiring, "dropped")
		return nil
	}
	if strings.TrimSpace(n.Email) == "" {
		log.Error("dropping notification", slog.String("reason", "empty recipient"), slog.Int64("user_id", n.UserID))
		metrics.RecordNotification(rabbitmq.QueueExpiring, "dropped")
		return nil
	}
	return s.deliver(ctx, op, rabbitmq.QueueExpiring, s.expiringMail(n))
}

func (s *Service) deliver(ctx context.Context, op, queue string, msg models.Mail) error {
	if err := s.mailer.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		s.log.Error("failed to deliver email", slog.String("op", op), sl.Err(err))
		metrics.RecordNotification(queue, "failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordNotification(queue, "sent")
	s.log.Info("email delivered", slog.String("op", op))
	return nil
}

func (s *Service) expiringMail(n models.Notification) models.Mail {
	var subject, what string
	if n.Kind == models.KindTrial {
		subject = "Пробный период VPN скоро закончится"
		what = "Пробный период"
	} else {
		subject = "Подписка на VPN скоро закончится"
		what = "Оплаченный период"
	}
	body := fmt.Sprintf("Здравствуйте, %s!\n\n%s заканчивается %s.\n", n.Username, what, n.EndDate.UTC().Format(endDateLayout))
	if s.paymentURL != "" {
		body += fmt.Sprintf("Продлить подписку можно по ссылке: %s\n", s.paymentURL)
	}
	return models.Mail{To: n.Email, Subject: subject, Body: body}
}
