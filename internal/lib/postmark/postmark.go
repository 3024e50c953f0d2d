// Package postmark отправляет письма через транзакционный API Postmark.
package postmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrz1836/postmark"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
)

// ErrInvalidConfig не заданы токен сервера или адрес отправителя.
var ErrInvalidConfig = errors.New("postmark: invalid config")

// Client часть клиента Postmark, которая нужна для отправки.
type Client interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Mailer отправляет письма через Postmark.
type Mailer struct {
	client Client
	from   string
	log    *slog.Logger
}

// New создаёт Mailer с клиентом Postmark по настройкам.
func New(cfg config.Postmark, log *slog.Logger) (*Mailer, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: server token is required", ErrInvalidConfig)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidConfig)
	}
	return NewWithClient(postmark.NewClient(cfg.ServerToken, cfg.AccountToken), cfg.From, log), nil
}

// NewWithClient создаёт Mailer поверх готового клиента.
func NewWithClient(client Client, from string, log *slog.Logger) *Mailer {
	return &Mailer{client: client, from: from, log: log}
}

// Send отправляет текстовое письмо.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	const op = "postmark.Send"

	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:     m.from,
		To:       to,
		Subject:  subject,
		TextBody: body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("%s: postmark error: %d - %s", op, resp.ErrorCode, resp.Message)
	}

	m.log.Info("email sent successfully", slog.String("op", op), slog.String("to", to), slog.String("message_id", resp.MessageID))
	return nil
}
