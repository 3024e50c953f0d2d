package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/password"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

// ForgotPassword отправляет код сброса пароля. Для неизвестной почты
// возвращает nil, чтобы по ответу нельзя было проверить наличие аккаунта.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"
	log := s.log.With(slog.String("op", op))

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := password.NewCode(codeDigits)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reset := models.PasswordReset{
		Email:  user.Email,
		Code:   code,
		Expiry: s.clock.Now().UTC().Add(s.opts.CodeTTL),
	}
	if err := s.repo.UpsertPasswordReset(ctx, reset); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	subject, body := resetMail(user.Username, code, s.opts.CodeTTL)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		log.Error("failed to send reset email", sl.Err(err), slog.Int64("user_id", user.ID))
		if derr := s.repo.DeletePasswordReset(ctx, user.Email); derr != nil {
			log.Error("failed to delete password reset", sl.Err(derr))
		}
		return fmt.Errorf("%s: %w", op, apperr.Wrap(apperr.Upstream, "failed to send reset email", err))
	}

	log.Info("password reset code sent", slog.Int64("user_id", user.ID))
	return nil
}

// ResetPassword меняет пароль по коду из письма. Текущая сессия завершается.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	const op = "auth.ResetPassword"
	log := s.log.With(slog.String("op", op))
	email = strings.TrimSpace(email)

	reset, err := s.repo.GetPasswordReset(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidCode)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !codesEqual(reset.Code, code) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCode)
	}
	if !s.clock.Now().UTC().Before(reset.Expiry) {
		if err := s.repo.DeletePasswordReset(ctx, reset.Email); err != nil {
			log.Error("failed to delete expired reset", sl.Err(err))
		}
		return fmt.Errorf("%s: %w", op, ErrCodeExpired)
	}

	hash, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdatePassword(ctx, reset.Email, hash); err != nil {
			return err
		}
		return s.repo.DeletePasswordReset(ctx, reset.Email)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset")
	return nil
}
