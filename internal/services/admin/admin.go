// Package admin операции администратора: выборка пользователей,
// ручная выдача периодов и смена тарифа.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/subscription"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

var (
	// ErrInvalidLevel тариф должен быть 0 или 1.
	ErrInvalidLevel = apperr.New(apperr.Validation, "subscription level must be 0 or 1")
	// ErrInvalidStatus неизвестный фильтр по подписке.
	ErrInvalidStatus = apperr.New(apperr.Validation, "unknown status filter")
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = apperr.New(apperr.NotFound, "user not found")
)

// Repository выборки и изменения пользователей.
type Repository interface {
	ListUsers(ctx context.Context, filter models.UserFilter, now time.Time) ([]models.UserRow, int, error)
	SetSubscriptionLevel(ctx context.Context, id int64, level int) error
	SetAdmin(ctx context.Context, username string, isAdmin bool) error
}

// Granter выдача периодов через оператор продления.
type Granter interface {
	Grant(ctx context.Context, userID int64, kind models.PeriodKind, days int) (*models.Period, error)
}

// Service операции администратора.
type Service struct {
	repo    Repository
	granter Granter
	clock   clockwork.Clock
	log     *slog.Logger
}

// New создаёт Service.
func New(repo Repository, granter Granter, clock clockwork.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, granter: granter, clock: clock, log: log}
}

// ListUsers возвращает страницу пользователей с вычисленным правом доступа.
func (s *Service) ListUsers(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	const op = "admin.ListUsers"

	filter = normalize(filter)
	switch filter.Status {
	case models.FilterAll, models.FilterPaid, models.FilterTrial, models.FilterNone:
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	now := s.clock.Now().UTC()
	rows, total, err := s.repo.ListUsers(ctx, filter, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	page := &models.UserPage{
		Users:   make([]models.UserSummary, 0, len(rows)),
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}
	for _, r := range rows {
		page.Users = append(page.Users, models.UserSummary{
			User:        r.User,
			Entitlement: subscription.EntitlementAt(r.TrialEnd, r.PaidEnd, now),
			DeviceCount: r.DeviceCount,
			LoginCount:  r.LoginCount,
			LastLogin:   r.LastLogin,
		})
	}
	return page, nil
}

func normalize(f models.UserFilter) models.UserFilter {
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	if f.Status == "" {
		f.Status = models.FilterAll
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PerPage <= 0:
		f.PerPage = defaultPerPage
	case f.PerPage > maxPerPage:
		f.PerPage = maxPerPage
	}
	return f
}

// Grant выдаёт пользователю пробный или оплаченный период.
func (s *Service) Grant(ctx context.Context, userID int64, kind models.PeriodKind, days int) (*models.Period, error) {
	const op = "admin.Grant"
	p, err := s.granter.Grant(ctx, userID, kind, days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("period granted",
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.String("kind", string(kind)),
		slog.Int("days", days),
	)
	return p, nil
}

// SetLevel меняет тариф пользователя и тем самым лимит устройств.
func (s *Service) SetLevel(ctx context.Context, userID int64, level int) error {
	const op = "admin.SetLevel"
	if level != 0 && level != 1 {
		return fmt.Errorf("%s: %w", op, ErrInvalidLevel)
	}
	if err := s.repo.SetSubscriptionLevel(ctx, userID, level); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription level changed", slog.String("op", op), slog.Int64("user_id", userID), slog.Int("level", level))
	return nil
}

// Promote выдаёт или снимает права администратора.
func (s *Service) Promote(ctx context.Context, username string, isAdmin bool) error {
	const op = "admin.Promote"
	if err := s.repo.SetAdmin(ctx, username, isAdmin); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin flag changed", slog.String("op", op), slog.String("username", username), slog.Bool("is_admin", isAdmin))
	return nil
}
