package repository

import (
	"context"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

const deviceColumns = `id, user_id, device_token, device_model, device_os, last_seen, created_at`

func scanDevice(row rowScanner) (*models.Device, error) {
	var d models.Device
	if err := row.Scan(&d.ID, &d.UserID, &d.Token, &d.Model, &d.OS, &d.LastSeen, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDeviceByToken возвращает устройство по токену независимо от владельца.
func (s *Storage) GetDeviceByToken(ctx context.Context, token string) (*models.Device, error) {
	const op = "storage.GetDeviceByToken"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	d, err := scanDevice(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_token = $1`, token))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return d, nil
}

// CountDevices возвращает количество устройств пользователя.
func (s *Storage) CountDevices(ctx context.Context, userID int64) (int, error) {
	const op = "storage.CountDevices"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, mapErr(op, err)
	}
	return n, nil
}

// InsertDevice привязывает новое устройство к пользователю.
func (s *Storage) InsertDevice(ctx context.Context, d models.Device) (int64, error) {
	const op = "storage.InsertDevice"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	var id int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`INSERT INTO devices (user_id, device_token, device_model, device_os, last_seen, created_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 RETURNING id`,
		d.UserID, d.Token, d.Model, d.OS, d.LastSeen).Scan(&id)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// TouchDevice обновляет время последней активности устройства пользователя.
func (s *Storage) TouchDevice(ctx context.Context, userID int64, token string, at time.Time) error {
	const op = "storage.TouchDevice"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE devices SET last_seen = $1 WHERE user_id = $2 AND device_token = $3`, at, userID, token)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// ListDevices возвращает устройства пользователя, недавно активные первыми.
func (s *Storage) ListDevices(ctx context.Context, userID int64) ([]models.Device, error) {
	const op = "storage.ListDevices"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY last_seen DESC`, userID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		result = append(result, *d)
	}
	if err = rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return result, nil
}

// DeleteDevice отвязывает устройство от пользователя.
func (s *Storage) DeleteDevice(ctx context.Context, userID int64, token string) error {
	const op = "storage.DeleteDevice"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM devices WHERE user_id = $1 AND device_token = $2`, userID, token)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}
