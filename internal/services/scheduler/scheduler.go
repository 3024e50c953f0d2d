// Package scheduler фоновые задачи: перевод истёкших периодов в expired,
// уведомления о скором окончании подписки и очистка просроченных кодов.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/metrics"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// Repository выборки для фоновых задач.
type Repository interface {
	FindPeriodsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringPeriod, error)
	MarkPeriodNotified(ctx context.Context, periodID int64, at time.Time) error
	PurgeExpiredPendingUsers(ctx context.Context, now time.Time) (int64, error)
	PurgeExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper переводит истёкшие периоды в expired.
type Sweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Publisher публикует сообщения в обменник уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service фоновые задачи.
type Service struct {
	repo    Repository
	sweeper Sweeper
	pub     Publisher
	clock   clockwork.Clock
	log     *slog.Logger
	window  time.Duration
}

// New создаёт Service. window задаёт, за сколько до окончания периода отправляется уведомление.
func New(repo Repository, sweeper Sweeper, pub Publisher, clock clockwork.Clock, log *slog.Logger, window time.Duration) *Service {
	return &Service{
		repo:    repo,
		sweeper: sweeper,
		pub:     pub,
		clock:   clock,
		log:     log,
		window:  window,
	}
}

// RunSweep переводит просроченные активные периоды в expired.
func (s *Service) RunSweep(ctx context.Context) error {
	const op = "scheduler.RunSweep"
	n, err := s.sweeper.ExpireStale(ctx)
	if err != nil {
		s.log.Error("sweep failed", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordExpired(n)
	if n > 0 {
		s.log.Info("stale periods expired", slog.String("op", op), slog.Int("count", n))
	}
	return nil
}

// RunExpiryNotices публикует уведомления о периодах, заканчивающихся в пределах окна.
// Период помечается уведомлённым только после успешной публикации,
// поэтому неудачная публикация повторится при следующем запуске.
func (s *Service) RunExpiryNotices(ctx context.Context) (int, error) {
	const op = "scheduler.RunExpiryNotices"
	log := s.log.With(slog.String("op", op))

	now := s.clock.Now().UTC()
	periods, err := s.repo.FindPeriodsExpiringBetween(ctx, now, now.Add(s.window))
	if err != nil {
		log.Error("failed to find expiring periods", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(periods) == 0 {
		log.Debug("no expiring periods found")
		return 0, nil
	}

	var (
		sent int
		errs []error
	)
	for _, p := range periods {
		msg := models.Notification{
			PeriodID: p.PeriodID,
			UserID:   p.UserID,
			Username: p.Username,
			Email:    p.Email,
			Kind:     p.Kind,
			EndDate:  p.EndDate,
		}
		if err := s.pub.Publish(ctx, rabbitmq.RoutingExpiring, msg); err != nil {
			log.Error("failed to publish notification", sl.Err(err), slog.Int64("period_id", p.PeriodID))
			metrics.RecordNotification(rabbitmq.QueueExpiring, "publish_failed")
			errs = append(errs, err)
			continue
		}
		if err := s.repo.MarkPeriodNotified(ctx, p.PeriodID, now); err != nil {
			log.Error("failed to mark period notified", sl.Err(err), slog.Int64("period_id", p.PeriodID))
			errs = append(errs, err)
			continue
		}
		metrics.RecordNotification(rabbitmq.QueueExpiring, "published")
		sent++
	}

	log.Info("expiry notices published", slog.Int("found", len(periods)), slog.Int("sent", sent))
	if err := errors.Join(errs...); err != nil {
		return sent, fmt.Errorf("%s: %w", op, err)
	}
	return sent, nil
}

// RunPurge удаляет просроченные ожидающие регистрации и коды сброса пароля.
func (s *Service) RunPurge(ctx context.Context) error {
	const op = "scheduler.RunPurge"
	now := s.clock.Now().UTC()

	pending, err := s.repo.PurgeExpiredPendingUsers(ctx, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resets, err := s.repo.PurgeExpiredPasswordResets(ctx, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if pending > 0 || resets > 0 {
		s.log.Info("expired codes purged",
			slog.String("op", op),
			slog.Int64("pending_users", pending),
			slog.Int64("password_resets", resets),
		)
	}
	return nil
}
