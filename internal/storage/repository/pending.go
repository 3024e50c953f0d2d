package repository

import (
	"context"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// CreatePendingUser сохраняет регистрацию, ожидающую подтверждения почты.
func (s *Storage) CreatePendingUser(ctx context.Context, p models.PendingUser) (int64, error) {
	const op = "storage.CreatePendingUser"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	var id int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`INSERT INTO pending_users (username, email, password_hash, verification_code, verification_expiry)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		p.Username, p.Email, p.PasswordHash, p.VerificationCode, p.VerificationExpiry).Scan(&id)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// GetPendingUserByEmail возвращает ожидающую регистрацию по почте.
func (s *Storage) GetPendingUserByEmail(ctx context.Context, email string) (*models.PendingUser, error) {
	const op = "storage.GetPendingUserByEmail"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	var p models.PendingUser
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, verification_code, verification_expiry, created_at
		 FROM pending_users WHERE lower(email) = lower($1)`, email).
		Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.VerificationCode, &p.VerificationExpiry, &p.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &p, nil
}

// PendingUserExists проверяет, есть ли незавершённая регистрация с таким username или email.
func (s *Storage) PendingUserExists(ctx context.Context, username, email string) (bool, error) {
	const op = "storage.PendingUserExists"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pending_users WHERE username = $1 OR lower(email) = lower($2))`,
		username, email).Scan(&exists)
	if err != nil {
		return false, mapErr(op, err)
	}
	return exists, nil
}

// DeletePendingUser удаляет ожидающую регистрацию.
func (s *Storage) DeletePendingUser(ctx context.Context, id int64) error {
	const op = "storage.DeletePendingUser"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM pending_users WHERE id = $1`, id); err != nil {
		return mapErr(op, err)
	}
	return nil
}

// PurgeExpiredPendingUsers удаляет регистрации с истёкшим кодом.
func (s *Storage) PurgeExpiredPendingUsers(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.PurgeExpiredPendingUsers"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM pending_users WHERE verification_expiry <= $1`, now)
	if err != nil {
		return 0, mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(op, err)
	}
	return n, nil
}

// UpsertPasswordReset сохраняет код сброса пароля, заменяя предыдущий.
func (s *Storage) UpsertPasswordReset(ctx context.Context, r models.PasswordReset) error {
	const op = "storage.UpsertPasswordReset"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO password_resets (email, reset_code, expiry_date) VALUES (lower($1), $2, $3)
		 ON CONFLICT (email) DO UPDATE SET reset_code = EXCLUDED.reset_code, expiry_date = EXCLUDED.expiry_date`,
		r.Email, r.Code, r.Expiry)
	if err != nil {
		return mapErr(op, err)
	}
	return nil
}

// GetPasswordReset возвращает код сброса по почте.
func (s *Storage) GetPasswordReset(ctx context.Context, email string) (*models.PasswordReset, error) {
	const op = "storage.GetPasswordReset"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	var r models.PasswordReset
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT email, reset_code, expiry_date FROM password_resets WHERE email = lower($1)`, email).
		Scan(&r.Email, &r.Code, &r.Expiry)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &r, nil
}

// DeletePasswordReset удаляет код сброса.
func (s *Storage) DeletePasswordReset(ctx context.Context, email string) error {
	const op = "storage.DeletePasswordReset"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM password_resets WHERE email = lower($1)`, email); err != nil {
		return mapErr(op, err)
	}
	return nil
}

// PurgeExpiredPasswordResets удаляет истёкшие коды сброса.
func (s *Storage) PurgeExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.PurgeExpiredPasswordResets"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM password_resets WHERE expiry_date <= $1`, now)
	if err != nil {
		return 0, mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(op, err)
	}
	return n, nil
}
