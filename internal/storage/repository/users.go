package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

const userColumns = `id, username, email, password_hash, email_verified, auth_token, token_expiry,
			      vpn_key, client_ip, subscription_level, is_admin, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                     models.User
		authToken, vpnKey, ip sql.NullString
		tokenExpiry           sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailVerified,
		&authToken, &tokenExpiry, &vpnKey, &ip, &u.SubscriptionLevel, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.AuthToken = authToken.String
	u.VPNKey = vpnKey.String
	u.ClientIP = ip.String
	if tokenExpiry.Valid {
		u.TokenExpiry = &tokenExpiry.Time
	}
	return &u, nil
}

// CreateUser сохраняет подтверждённого пользователя и возвращает его ID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.CreateUser"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}

	query := `INSERT INTO users (username, email, password_hash, email_verified, subscription_level, is_admin)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var id int64
	if err := s.conn(ctx).QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.EmailVerified,
		user.SubscriptionLevel, user.IsAdmin).Scan(&id); err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// GetUserByID возвращает пользователя по ID.
func (s *Storage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUserByID"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по почте.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// LockUser блокирует строку пользователя до конца транзакции (SELECT ... FOR UPDATE).
// Вызывается только внутри InTx: так сериализуются продления и регистрация устройств
// одного пользователя.
func (s *Storage) LockUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.LockUser"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// UserExists проверяет, занят ли username или email.
func (s *Storage) UserExists(ctx context.Context, username, email string) (bool, error) {
	const op = "storage.UserExists"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR lower(email) = lower($2))`,
		username, email).Scan(&exists)
	if err != nil {
		return false, mapErr(op, err)
	}
	return exists, nil
}

// SetVPNKeys сохраняет ключевой материал, выданный провижинером.
func (s *Storage) SetVPNKeys(ctx context.Context, id int64, keys models.VPNKeys) error {
	const op = "storage.SetVPNKeys"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET vpn_key = $1, client_ip = $2 WHERE id = $3`,
		keys.PrivateKey, keys.ClientAddress, id)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// SetSession сохраняет идентификатор сессии и срок её действия.
func (s *Storage) SetSession(ctx context.Context, id int64, token string, expiry time.Time) error {
	const op = "storage.SetSession"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET auth_token = $1, token_expiry = $2 WHERE id = $3`, token, expiry, id)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// ClearSession завершает текущую сессию пользователя.
func (s *Storage) ClearSession(ctx context.Context, id int64) error {
	const op = "storage.ClearSession"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET auth_token = NULL, token_expiry = NULL WHERE id = $1`, id)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// UpdatePassword меняет хэш пароля и завершает сессию.
func (s *Storage) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	const op = "storage.UpdatePassword"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET password_hash = $1, auth_token = NULL, token_expiry = NULL
		 WHERE lower(email) = lower($2)`, passwordHash, email)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// SetSubscriptionLevel меняет тариф пользователя.
func (s *Storage) SetSubscriptionLevel(ctx context.Context, id int64, level int) error {
	const op = "storage.SetSubscriptionLevel"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET subscription_level = $1 WHERE id = $2`, level, id)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// SetAdmin выдаёт или снимает права администратора.
func (s *Storage) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	const op = "storage.SetAdmin"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET is_admin = $1 WHERE username = $2`, isAdmin, username)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// RecordLogin увеличивает счётчик входов пользователя.
func (s *Storage) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	const op = "storage.RecordLogin"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO user_stats (user_id, login_count, last_login) VALUES ($1, 1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET login_count = user_stats.login_count + 1, last_login = EXCLUDED.last_login`, id, at)
	if err != nil {
		return mapErr(op, err)
	}
	return nil
}

var userSortColumns = map[string]string{
	"id":         "u.id",
	"username":   "u.username",
	"created_at": "u.created_at",
}

// ListUsers возвращает страницу пользователей с концами активных периодов
// и общее количество подходящих под фильтр записей.
// Фильтр по подписке сравнивает end_date с now так же, как вычислитель права доступа.
func (s *Storage) ListUsers(ctx context.Context, filter models.UserFilter, now time.Time) ([]models.UserRow, int, error) {
	const op = "storage.ListUsers"
	if err := ctxDone(ctx, op); err != nil {
		return nil, 0, err
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		ph := arg("%" + strings.ToLower(q) + "%")
		where = append(where, fmt.Sprintf("(lower(u.username) LIKE %s OR lower(u.email) LIKE %s)", ph, ph))
	}
	switch filter.Status {
	case models.FilterPaid:
		where = append(where, fmt.Sprintf("p.end_date > %s", arg(now)))
	case models.FilterTrial:
		ph := arg(now)
		where = append(where, fmt.Sprintf("t.end_date > %s AND (p.end_date IS NULL OR p.end_date <= %s)", ph, ph))
	case models.FilterNone:
		ph := arg(now)
		where = append(where, fmt.Sprintf("(t.end_date IS NULL OR t.end_date <= %s) AND (p.end_date IS NULL OR p.end_date <= %s)", ph, ph))
	}
	cond := ""
	if len(where) > 0 {
		cond = "WHERE " + strings.Join(where, " AND ")
	}

	from := `FROM users u
			 LEFT JOIN LATERAL (
			     SELECT end_date FROM subscription_periods
			     WHERE user_id = u.id AND kind = 'trial' AND status = 'active'
			     ORDER BY end_date DESC LIMIT 1
			 ) t ON TRUE
			 LEFT JOIN LATERAL (
			     SELECT end_date FROM subscription_periods
			     WHERE user_id = u.id AND kind = 'paid' AND status = 'active'
			     ORDER BY end_date DESC LIMIT 1
			 ) p ON TRUE
			 LEFT JOIN user_stats st ON st.user_id = u.id ` + cond

	var total int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(op, err)
	}

	sortCol, ok := userSortColumns[filter.Sort]
	if !ok {
		sortCol = "u.id"
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	limit, offset := arg(filter.PerPage), arg((filter.Page-1)*filter.PerPage)
	query := fmt.Sprintf(`SELECT u.id, u.username, u.email, u.password_hash, u.email_verified, u.auth_token,
			       u.token_expiry, u.vpn_key, u.client_ip, u.subscription_level, u.is_admin, u.created_at,
			       t.end_date, p.end_date,
			       (SELECT COUNT(*) FROM devices d WHERE d.user_id = u.id),
			       COALESCE(st.login_count, 0), st.last_login
			  %s
			  ORDER BY %s %s
			  LIMIT %s OFFSET %s`, from, sortCol, dir, limit, offset)

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.UserRow
	for rows.Next() {
		var (
			r                      models.UserRow
			authToken, vpnKey, ip  sql.NullString
			tokenExpiry, lastLogin sql.NullTime
			trialEnd, paidEnd      sql.NullTime
		)
		u := &r.User
		if err = rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailVerified, &authToken,
			&tokenExpiry, &vpnKey, &ip, &u.SubscriptionLevel, &u.IsAdmin, &u.CreatedAt,
			&trialEnd, &paidEnd, &r.DeviceCount, &r.LoginCount, &lastLogin); err != nil {
			return nil, 0, mapErr(op, err)
		}
		u.AuthToken = authToken.String
		u.VPNKey = vpnKey.String
		u.ClientIP = ip.String
		if tokenExpiry.Valid {
			u.TokenExpiry = &tokenExpiry.Time
		}
		if trialEnd.Valid {
			r.TrialEnd = &trialEnd.Time
		}
		if paidEnd.Valid {
			r.PaidEnd = &paidEnd.Time
		}
		if lastLogin.Valid {
			r.LastLogin = &lastLogin.Time
		}
		result = append(result, r)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, mapErr(op, err)
	}
	return result, total, nil
}
