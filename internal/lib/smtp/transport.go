// Package smtp отправляет письма через SMTP-сервер с STARTTLS и PLAIN-аутентификацией.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
)

const dialTimeout = 10 * time.Second

var errNoStartTLS = errors.New("smtp server does not support STARTTLS")

// Session SMTP-сессия для одного письма. *smtp.Client удовлетворяет интерфейсу.
type Session interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает защищённую и аутентифицированную сессию.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
	From() string
}

// Transport Dialer поверх net/smtp.
type Transport struct {
	cfg config.SMTP
	log *slog.Logger
}

// NewTransport создаёт Transport по настройкам SMTP.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Dial подключается к серверу, включает STARTTLS и проходит PLAIN-аутентификацию.
func (t *Transport) Dial(ctx context.Context) (Session, error) {
	const op = "smtp.Dial"
	addr := net.JoinHostPort(t.cfg.Host, t.cfg.Port)

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: dial %s: %w", op, addr, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := t.handshake(client); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			t.log.Warn("failed to close smtp client", slog.String("op", op), sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

func (t *Transport) handshake(client *smtp.Client) error {
	if ok, _ := client.Extension("STARTTLS"); !ok {
		return errNoStartTLS
	}
	if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := client.Auth(smtp.PlainAuth("", t.cfg.User, t.cfg.Password, t.cfg.Host)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// From адрес отправителя: From из настроек или имя пользователя SMTP.
func (t *Transport) From() string {
	if t.cfg.From != "" {
		return t.cfg.From
	}
	return t.cfg.User
}
