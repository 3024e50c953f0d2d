package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/metrics"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

const day = 24 * time.Hour

// Renew продлевает подписку вида kind на days суток.
//
// Новый период начинается сейчас, а заканчивается через days суток после
// max(now, конец текущего активного периода того же вида). Прежний активный
// период закрывается. Всё выполняется в одной транзакции под блокировкой строки
// пользователя. Если ctx уже несёт транзакцию, продление выполняется в ней.
func (s *Service) Renew(ctx context.Context, userID int64, kind models.PeriodKind, days int) (*models.Period, error) {
	const op = "subscription.Renew"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID), slog.String("kind", string(kind)))

	if !kind.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidKind)
	}
	if days <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidDuration)
	}

	var period models.Period
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockUser(ctx, userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if kind == models.KindTrial {
			used, err := s.repo.HasTrial(ctx, userID)
			if err != nil {
				return err
			}
			if used {
				return ErrTrialAlreadyUsed
			}
		}

		now := s.clock.Now().UTC()
		base := now
		active, err := s.repo.GetActivePeriods(ctx, userID)
		if err != nil {
			return err
		}
		for _, p := range active {
			if p.Kind == kind && p.EndDate.After(base) {
				base = p.EndDate
			}
		}

		if _, err = s.repo.DeactivatePeriods(ctx, userID, kind, now); err != nil {
			return err
		}

		period = models.Period{
			UserID:    userID,
			Kind:      kind,
			Status:    models.StatusActive,
			StartDate: now,
			EndDate:   base.Add(time.Duration(days) * day),
			CreatedAt: now,
			UpdatedAt: now,
		}
		period.ID, err = s.repo.InsertPeriod(ctx, period)
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) && kind == models.KindTrial {
				return ErrTrialAlreadyUsed
			}
			return err
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			log.Error("renewal failed", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.Invalidate(ctx, userID)
	metrics.RecordRenewal(string(kind))
	log.Info("subscription renewed", slog.Time("end_date", period.EndDate))
	return &period, nil
}

// StartTrial выдаёт пробный период.
func (s *Service) StartTrial(ctx context.Context, userID int64) (*models.Period, error) {
	return s.Renew(ctx, userID, models.KindTrial, s.durations.TrialDays)
}

// ExtendPaid продлевает оплаченный доступ на стандартный срок.
func (s *Service) ExtendPaid(ctx context.Context, userID int64) (*models.Period, error) {
	return s.Renew(ctx, userID, models.KindPaid, s.durations.PaidDays)
}

// Grant выдаёт период по решению администратора.
func (s *Service) Grant(ctx context.Context, userID int64, kind models.PeriodKind, days int) (*models.Period, error) {
	return s.Renew(ctx, userID, kind, days)
}
