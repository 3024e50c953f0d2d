// Package subscription вычисляет право пользователя на доступ к VPN
// и продлевает периоды подписки в журнале.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

var (
	// ErrTrialAlreadyUsed пробный период выдаётся один раз.
	ErrTrialAlreadyUsed = apperr.New(apperr.Conflict, "trial already used")
	// ErrInvalidDuration длительность продления должна быть положительной.
	ErrInvalidDuration = apperr.New(apperr.Validation, "duration must be positive")
	// ErrInvalidKind неизвестный вид периода.
	ErrInvalidKind = apperr.New(apperr.Validation, "unknown period kind")
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = apperr.New(apperr.NotFound, "user not found")
)

// Repository журнал периодов подписки.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUser(ctx context.Context, id int64) (*models.User, error)
	GetActivePeriods(ctx context.Context, userID int64) ([]models.Period, error)
	HasTrial(ctx context.Context, userID int64) (bool, error)
	DeactivatePeriods(ctx context.Context, userID int64, kind models.PeriodKind, now time.Time) (int64, error)
	InsertPeriod(ctx context.Context, p models.Period) (int64, error)
	ListPeriods(ctx context.Context, userID int64) ([]models.Period, error)
	ExpireStalePeriods(ctx context.Context, now time.Time) ([]int64, error)
}

// Cache кэш концов активных периодов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Durations длительности периодов в днях.
type Durations struct {
	TrialDays int
	PaidDays  int
}

// Service вычисляет право доступа и продлевает подписки.
type Service struct {
	repo      Repository
	cache     Cache
	clock     clockwork.Clock
	log       *slog.Logger
	durations Durations
	cacheTTL  time.Duration
}

// New создаёт Service. cache может быть nil, тогда право доступа всегда читается из БД.
func New(repo Repository, cache Cache, clock clockwork.Clock, log *slog.Logger, durations Durations, cacheTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		clock:     clock,
		log:       log,
		durations: durations,
		cacheTTL:  cacheTTL,
	}
}

// History возвращает все периоды пользователя.
func (s *Service) History(ctx context.Context, userID int64) ([]models.Period, error) {
	const op = "subscription.History"
	periods, err := s.repo.ListPeriods(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return periods, nil
}

// ExpireStale переводит просроченные активные периоды в expired и сбрасывает кэш затронутых пользователей.
// На право доступа это не влияет: оно всегда определяется сравнением дат.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	const op = "subscription.ExpireStale"
	userIDs, err := s.repo.ExpireStalePeriods(ctx, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	seen := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.Invalidate(ctx, id)
	}
	return len(userIDs), nil
}

// Invalidate сбрасывает кэшированное право доступа пользователя.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	key := cacheKey(userID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to invalidate entitlement cache", slog.String("key", key), slog.Any("err", err))
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("entitlement:%d", userID)
}
