package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/password"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

// Login проверяет пароль, при переданном устройстве проходит лимит устройств
// и выпускает JWT. jti и срок действия сохраняются у пользователя: новая сессия
// вытесняет предыдущую.
func (s *Service) Login(ctx context.Context, username, rawPassword string, device *models.Device) (*models.Session, error) {
	const op = "auth.Login"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			log.Warn("password hash check failed", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if !user.EmailVerified {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailNotVerified)
	}

	if device != nil && device.Token != "" {
		if _, err := s.devices.RegisterDevice(ctx, user.ID, *device); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	token, claims, err := s.jwtMaker.GenerateToken(user.ID, user.Username, user.Role())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	expiresAt := claims.ExpiresAt.Time
	if err := s.repo.SetSession(ctx, user.ID, claims.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.AuthToken = claims.ID
	user.TokenExpiry = &expiresAt

	if err := s.repo.RecordLogin(ctx, user.ID, s.clock.Now().UTC()); err != nil {
		log.Warn("failed to record login", sl.Err(err))
	}

	ent, err := s.subscriptions.Evaluate(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.Int64("user_id", user.ID))
	return &models.Session{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        user,
		Entitlement: ent,
	}, nil
}

// Logout завершает сессию. Если передан токен устройства, устройство отвязывается.
func (s *Service) Logout(ctx context.Context, userID int64, deviceToken string) error {
	const op = "auth.Logout"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	if err := s.repo.ClearSession(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if deviceToken != "" {
		err := s.devices.RemoveDevice(ctx, userID, deviceToken)
		switch {
		case apperr.Is(err, apperr.NotFound):
			log.Debug("device already removed")
		case err != nil:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	log.Info("user logged out")
	return nil
}

// ValidateToken проверяет подпись JWT и сверяет его jti с текущей сессией пользователя.
func (s *Service) ValidateToken(ctx context.Context, token string) (*models.User, models.Entitlement, error) {
	const op = "auth.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, models.Entitlement{}, fmt.Errorf("%s: %w", op, apperr.Wrap(apperr.Unauthorized, "invalid token", err))
	}
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.Entitlement{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
		return nil, models.Entitlement{}, fmt.Errorf("%s: %w", op, err)
	}
	if user.AuthToken == "" || user.AuthToken != claims.ID {
		return nil, models.Entitlement{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if user.TokenExpiry == nil || !s.clock.Now().Before(*user.TokenExpiry) {
		return nil, models.Entitlement{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	ent, err := s.subscriptions.Evaluate(ctx, user.ID)
	if err != nil {
		return nil, models.Entitlement{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, ent, nil
}
