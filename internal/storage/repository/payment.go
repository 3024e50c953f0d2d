package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

const paymentColumns = `id, user_id, amount::text, currency, payment_id, status, method, meta, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p    models.Payment
		meta []byte
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.PaymentID, &p.Status,
		&p.Method, &meta, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	return &p, nil
}

// CreatePayment сохраняет созданный в шлюзе платёж.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (int64, error) {
	const op = "storage.CreatePayment"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	meta, err := json.Marshal(p.Meta)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if p.Meta == nil {
		meta = []byte("{}")
	}
	var id int64
	err = s.conn(ctx).QueryRowContext(ctx,
		`INSERT INTO payments (user_id, amount, currency, payment_id, status, method, meta, created_at, updated_at)
		 VALUES ($1, $2::numeric, $3, $4, $5, $6, $7::jsonb, $8, $8)
		 RETURNING id`,
		p.UserID, p.Amount, p.Currency, p.PaymentID, p.Status, p.Method, string(meta), p.CreatedAt).Scan(&id)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// GetPayment возвращает платёж по ID шлюза.
func (s *Storage) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	p, err := scanPayment(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1`, paymentID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// TransitionPayment переводит платёж из pending в терминальный статус и
// возвращает владельца платежа. changed=false, если платёж не найден или уже
// не в pending.
func (s *Storage) TransitionPayment(ctx context.Context, paymentID string, to models.PaymentStatus, at time.Time) (int64, bool, error) {
	const op = "storage.TransitionPayment"
	if err := ctxDone(ctx, op); err != nil {
		return 0, false, err
	}
	var userID int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`UPDATE payments SET status = $1, updated_at = $2
		 WHERE payment_id = $3 AND status = 'pending'
		 RETURNING user_id`, to, at, paymentID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, mapErr(op, err)
	}
	return userID, true, nil
}

// ListPayments возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, userID int64) ([]models.Payment, error) {
	const op = "storage.ListPayments"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		result = append(result, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return result, nil
}
