package repository

import (
	"context"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

const periodColumns = `id, user_id, kind, status, start_date, end_date, created_at, updated_at`

func scanPeriod(row rowScanner) (models.Period, error) {
	var p models.Period
	err := row.Scan(&p.ID, &p.UserID, &p.Kind, &p.Status, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetActivePeriods возвращает последний активный период каждого вида.
// Статус active здесь только подсказка: строка может быть уже просрочена.
func (s *Storage) GetActivePeriods(ctx context.Context, userID int64) ([]models.Period, error) {
	const op = "storage.GetActivePeriods"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT DISTINCT ON (kind) `+periodColumns+`
		 FROM subscription_periods
		 WHERE user_id = $1 AND status = 'active'
		 ORDER BY kind, end_date DESC`, userID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []models.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return result, nil
}

// ListPeriods возвращает всю историю периодов пользователя, новые первыми.
func (s *Storage) ListPeriods(ctx context.Context, userID int64) ([]models.Period, error) {
	const op = "storage.ListPeriods"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+periodColumns+` FROM subscription_periods WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []models.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return result, nil
}

// HasTrial сообщает, выдавался ли пользователю пробный период в любом статусе.
func (s *Storage) HasTrial(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.HasTrial"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscription_periods WHERE user_id = $1 AND kind = 'trial')`,
		userID).Scan(&exists)
	if err != nil {
		return false, mapErr(op, err)
	}
	return exists, nil
}

// DeactivatePeriods снимает статус active со всех периодов вида kind.
// Период, который ещё не закончился к now, помечается canceled (заменён продлением),
// остальные — expired.
func (s *Storage) DeactivatePeriods(ctx context.Context, userID int64, kind models.PeriodKind, now time.Time) (int64, error) {
	const op = "storage.DeactivatePeriods"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE subscription_periods
		 SET status = CASE WHEN end_date > $3 THEN 'canceled' ELSE 'expired' END,
		     updated_at = $3
		 WHERE user_id = $1 AND kind = $2 AND status = 'active'`, userID, kind, now)
	if err != nil {
		return 0, mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(op, err)
	}
	return n, nil
}

// InsertPeriod добавляет период в журнал и возвращает его ID.
func (s *Storage) InsertPeriod(ctx context.Context, p models.Period) (int64, error) {
	const op = "storage.InsertPeriod"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	var id int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`INSERT INTO subscription_periods (user_id, kind, status, start_date, end_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING id`,
		p.UserID, p.Kind, p.Status, p.StartDate, p.EndDate, p.CreatedAt).Scan(&id)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// ExpireStalePeriods переводит в expired активные периоды, закончившиеся к now,
// и возвращает ID затронутых пользователей.
func (s *Storage) ExpireStalePeriods(ctx context.Context, now time.Time) ([]int64, error) {
	const op = "storage.ExpireStalePeriods"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`UPDATE subscription_periods
		 SET status = 'expired', updated_at = $1
		 WHERE status = 'active' AND end_date <= $1
		 RETURNING user_id`, now)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var userIDs []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, mapErr(op, err)
		}
		userIDs = append(userIDs, id)
	}
	if err = rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return userIDs, nil
}

// FindPeriodsExpiringBetween находит активные периоды, заканчивающиеся в (from, to],
// о которых ещё не отправлялось уведомление.
func (s *Storage) FindPeriodsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringPeriod, error) {
	const op = "storage.FindPeriodsExpiringBetween"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT sp.id, sp.user_id, u.username, u.email, sp.kind, sp.end_date
		 FROM subscription_periods sp
		 JOIN users u ON u.id = sp.user_id
		 WHERE sp.status = 'active' AND sp.notified_at IS NULL
		   AND sp.end_date > $1 AND sp.end_date <= $2
		 ORDER BY sp.end_date`, from, to)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []models.ExpiringPeriod
	for rows.Next() {
		var e models.ExpiringPeriod
		if err = rows.Scan(&e.PeriodID, &e.UserID, &e.Username, &e.Email, &e.Kind, &e.EndDate); err != nil {
			return nil, mapErr(op, err)
		}
		result = append(result, e)
	}
	if err = rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return result, nil
}

// MarkPeriodNotified отмечает, что уведомление об окончании периода отправлено.
func (s *Storage) MarkPeriodNotified(ctx context.Context, periodID int64, at time.Time) error {
	const op = "storage.MarkPeriodNotified"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE subscription_periods SET notified_at = $1 WHERE id = $2`, at, periodID)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}
