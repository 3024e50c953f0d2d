package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// activeEnds концы последних активных периодов. Хранятся в кэше вместо готовых флагов,
// чтобы флаги всегда пересчитывались относительно текущего времени.
type activeEnds struct {
	TrialEnd *time.Time `json:"trial_end,omitempty"`
	PaidEnd  *time.Time `json:"paid_end,omitempty"`
}

// EntitlementAt вычисляет право доступа на момент now по концам активных периодов.
// Период действует, только если его конец строго позже now.
func EntitlementAt(trialEnd, paidEnd *time.Time, now time.Time) models.Entitlement {
	var e models.Entitlement
	if trialEnd != nil && trialEnd.After(now) {
		e.IsTrial = true
		t := *trialEnd
		e.TrialEndDate = &t
	}
	if paidEnd != nil && paidEnd.After(now) {
		e.IsPaid = true
		t := *paidEnd
		e.PaidEndDate = &t
	}
	e.CanUse = e.IsTrial || e.IsPaid

	switch {
	case e.IsTrial && e.IsPaid:
		if e.PaidEndDate.After(*e.TrialEndDate) {
			e.ActiveEndDate = e.PaidEndDate
		} else {
			e.ActiveEndDate = e.TrialEndDate
		}
	case e.IsPaid:
		e.ActiveEndDate = e.PaidEndDate
	case e.IsTrial:
		e.ActiveEndDate = e.TrialEndDate
	}
	return e
}

// Evaluate возвращает право пользователя на доступ к VPN сейчас.
// Журнал не изменяется.
func (s *Service) Evaluate(ctx context.Context, userID int64) (models.Entitlement, error) {
	const op = "subscription.Evaluate"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	ends, err := s.loadEnds(ctx, log, userID)
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("%s: %w", op, err)
	}
	return EntitlementAt(ends.TrialEnd, ends.PaidEnd, s.clock.Now().UTC()), nil
}

func (s *Service) loadEnds(ctx context.Context, log *slog.Logger, userID int64) (activeEnds, error) {
	var ends activeEnds
	key := cacheKey(userID)
	if s.cache != nil {
		found, err := s.cache.Get(ctx, key, &ends)
		if err != nil {
			log.Warn("failed to read entitlement cache", slog.Any("err", err))
		} else if found {
			return ends, nil
		}
	}

	periods, err := s.repo.GetActivePeriods(ctx, userID)
	if err != nil {
		return activeEnds{}, err
	}
	ends = endsOf(periods)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ends, s.cacheTTL); err != nil {
			log.Warn("failed to cache entitlement", slog.Any("err", err))
		}
	}
	return ends, nil
}

func endsOf(periods []models.Period) activeEnds {
	var ends activeEnds
	for _, p := range periods {
		end := p.EndDate
		switch p.Kind {
		case models.KindTrial:
			if ends.TrialEnd == nil || end.After(*ends.TrialEnd) {
				ends.TrialEnd = &end
			}
		case models.KindPaid:
			if ends.PaidEnd == nil || end.After(*ends.PaidEnd) {
				ends.PaidEnd = &end
			}
		}
	}
	return ends
}
