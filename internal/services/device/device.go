// Package device ограничивает число устройств пользователя по его тарифу.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/metrics"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

var (
	// ErrDeviceLimitExceeded достигнут лимит устройств тарифа.
	ErrDeviceLimitExceeded = apperr.New(apperr.Conflict, "device limit exceeded")
	// ErrDeviceTokenTaken токен устройства привязан к другому пользователю.
	ErrDeviceTokenTaken = apperr.New(apperr.Conflict, "device already registered")
	// ErrDeviceNotFound устройство не найдено у пользователя.
	ErrDeviceNotFound = apperr.New(apperr.NotFound, "device not found")
	// ErrEmptyToken не передан токен устройства.
	ErrEmptyToken = apperr.New(apperr.Validation, "device token is required")
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = apperr.New(apperr.NotFound, "user not found")
)

// Repository хранилище устройств.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetDeviceByToken(ctx context.Context, token string) (*models.Device, error)
	CountDevices(ctx context.Context, userID int64) (int, error)
	InsertDevice(ctx context.Context, d models.Device) (int64, error)
	TouchDevice(ctx context.Context, userID int64, token string, at time.Time) error
	ListDevices(ctx context.Context, userID int64) ([]models.Device, error)
	DeleteDevice(ctx context.Context, userID int64, token string) error
}

// Limits лимиты устройств по уровню подписки.
type Limits struct {
	Base     int // subscription_level 0
	Elevated int // subscription_level >= 1
}

// For возвращает лимит для уровня подписки.
func (l Limits) For(level int) int {
	if level >= 1 {
		return l.Elevated
	}
	return l.Base
}

// Service реестр устройств.
type Service struct {
	repo   Repository
	clock  clockwork.Clock
	log    *slog.Logger
	limits Limits
}

// New создаёт реестр устройств.
func New(repo Repository, clock clockwork.Clock, log *slog.Logger, limits Limits) *Service {
	return &Service{
		repo:   repo,
		clock:  clock,
		log:    log,
		limits: limits,
	}
}

// RegisterDevice привязывает устройство к пользователю.
//
// Известный токен этого пользователя только обновляет last_seen. Проверка лимита
// и вставка выполняются под блокировкой строки пользователя, поэтому параллельные
// регистрации не превышают лимит.
func (s *Service) RegisterDevice(ctx context.Context, userID int64, d models.Device) (*models.Device, error) {
	const op = "device.RegisterDevice"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	d.Token = strings.TrimSpace(d.Token)
	if d.Token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}

	result := "added"
	var registered models.Device
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		user, err := s.repo.LockUser(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		now := s.clock.Now().UTC()

		existing, err := s.repo.GetDeviceByToken(ctx, d.Token)
		switch {
		case err == nil && existing.UserID == userID:
			if err := s.repo.TouchDevice(ctx, userID, d.Token, now); err != nil {
				return err
			}
			existing.LastSeen = now
			registered = *existing
			result = "known"
			return nil
		case err == nil:
			result = "taken"
			return ErrDeviceTokenTaken
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		count, err := s.repo.CountDevices(ctx, userID)
		if err != nil {
			return err
		}
		if limit := s.limits.For(user.SubscriptionLevel); count >= limit {
			result = "limit"
			log.Info("device limit reached", slog.Int("count", count), slog.Int("limit", limit))
			return ErrDeviceLimitExceeded
		}

		registered = models.Device{
			UserID:    userID,
			Token:     d.Token,
			Model:     d.Model,
			OS:        d.OS,
			LastSeen:  now,
			CreatedAt: now,
		}
		registered.ID, err = s.repo.InsertDevice(ctx, registered)
		if errors.Is(err, storage.ErrAlreadyExists) {
			result = "taken"
			return ErrDeviceTokenTaken
		}
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			result = "error"
			log.Error("device registration failed", sl.Err(err))
		}
		metrics.RecordDeviceRegistration(result)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordDeviceRegistration(result)
	log.Info("device registered", slog.String("result", result))
	return &registered, nil
}

// ListDevices возвращает устройства пользователя.
func (s *Service) ListDevices(ctx context.Context, userID int64) ([]models.Device, error) {
	const op = "device.ListDevices"
	devices, err := s.repo.ListDevices(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return devices, nil
}

// RemoveDevice отвязывает устройство.
func (s *Service) RemoveDevice(ctx context.Context, userID int64, token string) error {
	const op = "device.RemoveDevice"
	if err := s.repo.DeleteDevice(ctx, userID, token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrDeviceNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("device removed", slog.String("op", op), slog.Int64("user_id", userID))
	return nil
}

// TouchDevice обновляет время последней активности устройства.
func (s *Service) TouchDevice(ctx context.Context, userID int64, token string) error {
	const op = "device.TouchDevice"
	if err := s.repo.TouchDevice(ctx, userID, token, s.clock.Now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrDeviceNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Limits возвращает текущее число устройств пользователя и его лимит.
func (s *Service) Limits(ctx context.Context, userID int64) (count, limit int, err error) {
	const op = "device.Limits"
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, 0, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err = s.repo.CountDevices(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, s.limits.For(user.SubscriptionLevel), nil
}
