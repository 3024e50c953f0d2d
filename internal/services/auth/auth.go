// Package auth отвечает за регистрацию с подтверждением почты, вход по JWT,
// завершение сессии и сброс пароля.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/jwt"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/password"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

const codeDigits = 6

var (
	// ErrUserExists username или почта уже заняты.
	ErrUserExists = apperr.New(apperr.Conflict, "user already exists")
	// ErrVerificationNotFound нет ожидающей регистрации для этой почты.
	ErrVerificationNotFound = apperr.New(apperr.NotFound, "verification not found")
	// ErrInvalidCode код подтверждения не совпадает.
	ErrInvalidCode = apperr.New(apperr.Validation, "invalid code")
	// ErrCodeExpired срок действия кода истёк.
	ErrCodeExpired = apperr.New(apperr.Validation, "code expired")
	// ErrInvalidCredentials неверный логин или пароль.
	ErrInvalidCredentials = apperr.New(apperr.Unauthorized, "invalid credentials")
	// ErrEmailNotVerified почта не подтверждена.
	ErrEmailNotVerified = apperr.New(apperr.Forbidden, "email not verified")
	// ErrInvalidToken токен не прошёл проверку или сессия завершена.
	ErrInvalidToken = apperr.New(apperr.Unauthorized, "invalid token")
)

// Repository пользователи, ожидающие регистрации и коды сброса пароля.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	PurgeExpiredPendingUsers(ctx context.Context, now time.Time) (int64, error)
	UserExists(ctx context.Context, username, email string) (bool, error)
	PendingUserExists(ctx context.Context, username, email string) (bool, error)
	CreatePendingUser(ctx context.Context, p models.PendingUser) (int64, error)
	GetPendingUserByEmail(ctx context.Context, email string) (*models.PendingUser, error)
	DeletePendingUser(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, user models.User) (int64, error)
	SetVPNKeys(ctx context.Context, id int64, keys models.VPNKeys) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetSession(ctx context.Context, id int64, token string, expiry time.Time) error
	ClearSession(ctx context.Context, id int64) error
	RecordLogin(ctx context.Context, id int64, at time.Time) error

	UpsertPasswordReset(ctx context.Context, r models.PasswordReset) error
	GetPasswordReset(ctx context.Context, email string) (*models.PasswordReset, error)
	DeletePasswordReset(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

// Mailer отправляет письма с кодами.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Provisioner выдаёт ключевой материал WireGuard новому пользователю.
type Provisioner interface {
	Provision(ctx context.Context, userID int64) (models.VPNKeys, error)
}

// Subscriptions право доступа и пробный период.
type Subscriptions interface {
	StartTrial(ctx context.Context, userID int64) (*models.Period, error)
	Evaluate(ctx context.Context, userID int64) (models.Entitlement, error)
}

// Devices реестр устройств.
type Devices interface {
	RegisterDevice(ctx context.Context, userID int64, d models.Device) (*models.Device, error)
	RemoveDevice(ctx context.Context, userID int64, token string) error
}

// Options параметры сервиса.
type Options struct {
	CodeTTL           time.Duration // Срок действия кодов подтверждения и сброса
	SkipTrialOnSignup bool          // Не выдавать пробный период при подтверждении почты
}

// Service сервис аутентификации.
type Service struct {
	repo          Repository
	mailer        Mailer
	provisioner   Provisioner
	subscriptions Subscriptions
	devices       Devices
	jwtMaker      jwt.Maker
	clock         clockwork.Clock
	log           *slog.Logger
	opts          Options
}

// New создаёт сервис аутентификации.
func New(
	repo Repository,
	mailer Mailer,
	provisioner Provisioner,
	subscriptions Subscriptions,
	devices Devices,
	jwtMaker jwt.Maker,
	clock clockwork.Clock,
	log *slog.Logger,
	opts Options,
) *Service {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 15 * time.Minute
	}
	return &Service{
		repo:          repo,
		mailer:        mailer,
		provisioner:   provisioner,
		subscriptions: subscriptions,
		devices:       devices,
		jwtMaker:      jwtMaker,
		clock:         clock,
		log:           log,
		opts:          opts,
	}
}

// Register создаёт ожидающую регистрацию и отправляет код подтверждения на почту.
// Если письмо не ушло, запись удаляется, чтобы пользователь мог повторить попытку.
func (s *Service) Register(ctx context.Context, username, email, rawPassword string) error {
	const op = "auth.Register"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	now := s.clock.Now().UTC()

	if n, err := s.repo.PurgeExpiredPendingUsers(ctx, now); err != nil {
		log.Warn("failed to purge expired registrations", sl.Err(err))
	} else if n > 0 {
		log.Debug("expired registrations purged", slog.Int64("count", n))
	}

	exists, err := s.repo.UserExists(ctx, username, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		exists, err = s.repo.PendingUserExists(ctx, username, email)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if exists {
		return fmt.Errorf("%s: %w", op, ErrUserExists)
	}

	hash, err := password.GetHash(rawPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	code, err := password.NewCode(codeDigits)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.repo.CreatePendingUser(ctx, models.PendingUser{
		Username:           username,
		Email:              email,
		PasswordHash:       hash,
		VerificationCode:   code,
		VerificationExpiry: now.Add(s.opts.CodeTTL),
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	subject, body := verificationMail(username, code, s.opts.CodeTTL)
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		log.Error("failed to send verification email", sl.Err(err))
		if derr := s.repo.DeletePendingUser(ctx, id); derr != nil {
			log.Error("failed to delete pending user", sl.Err(derr))
		}
		return fmt.Errorf("%s: %w", op, apperr.Wrap(apperr.Upstream, "failed to send verification email", err))
	}

	log.Info("verification code sent")
	return nil
}

// VerifyEmail подтверждает почту кодом и создаёт пользователя.
//
// В одной транзакции пользователь сохраняется, получает ключи VPN и пробный период,
// а ожидающая запись удаляется. Отказ провижинера откатывает транзакцию
// и удаляет ожидающую запись: регистрацию нужно пройти заново.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	const op = "auth.VerifyEmail"
	log := s.log.With(slog.String("op", op))

	pending, err := s.repo.GetPendingUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrVerificationNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(slog.String("username", pending.Username))

	if !codesEqual(pending.VerificationCode, code) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCode)
	}
	if !s.clock.Now().UTC().Before(pending.VerificationExpiry) {
		if err := s.repo.DeletePendingUser(ctx, pending.ID); err != nil {
			log.Error("failed to delete expired registration", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrCodeExpired)
	}

	user := models.User{
		Username:      pending.Username,
		Email:         pending.Email,
		PasswordHash:  pending.PasswordHash,
		EmailVerified: true,
		CreatedAt:     s.clock.Now().UTC(),
	}
	var (
		provisionErr error
		issued       *models.VPNKeys
	)
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		id, err := s.repo.CreateUser(ctx, user)
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return ErrUserExists
			}
			return err
		}
		user.ID = id

		keys, err := s.provisioner.Provision(ctx, id)
		if err != nil {
			provisionErr = err
			return apperr.Wrap(apperr.Upstream, "failed to provision vpn keys", err)
		}
		issued = &keys
		if err := s.repo.SetVPNKeys(ctx, id, keys); err != nil {
			return err
		}
		user.VPNKey = keys.PrivateKey
		user.ClientIP = keys.ClientAddress

		if err := s.repo.DeletePendingUser(ctx, pending.ID); err != nil {
			return err
		}
		if s.opts.SkipTrialOnSignup {
			return nil
		}
		_, err = s.subscriptions.StartTrial(ctx, id)
		return err
	})
	if err != nil {
		if issued != nil {
			// Пир уже добавлен скриптом, а пользователь откатился.
			log.Error("vpn peer left without user, remove it manually",
				slog.Int64("user_id", user.ID),
				slog.String("client_ip", issued.ClientAddress),
				sl.Err(err))
		}
		if provisionErr != nil {
			log.Error("vpn provisioning failed", sl.Err(provisionErr))
			if derr := s.repo.DeletePendingUser(ctx, pending.ID); derr != nil {
				log.Error("failed to delete pending user", sl.Err(derr))
			}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user verified", slog.Int64("user_id", user.ID))
	return &user, nil
}

func codesEqual(want, got string) bool {
	got = strings.TrimSpace(got)
	return want != "" && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
