// Package payment создаёт платежи в шлюзе и применяет их итоговые статусы к подписке.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/paymentprovider"
)

var (
	// ErrUnsupportedMethod способ оплаты не разрешён настройками.
	ErrUnsupportedMethod = apperr.New(apperr.Validation, "unsupported payment method")
	// ErrMissingUserID в метаданных платежа нет корректного user_id.
	ErrMissingUserID = apperr.New(apperr.Validation, "metadata.user_id is missing or invalid")
	// ErrNotTerminal статус не является итоговым.
	ErrNotTerminal = apperr.New(apperr.Validation, "status is not terminal")
	// ErrPaymentNotFound платёж с таким ID не создавался.
	ErrPaymentNotFound = apperr.New(apperr.NotFound, "payment not found")
	// ErrStatusConflict платёж уже переведён в другой итоговый статус.
	ErrStatusConflict = apperr.New(apperr.Conflict, "payment already has another terminal status")
	// ErrOwnerMismatch user_id из уведомления не совпадает с владельцем платежа.
	ErrOwnerMismatch = apperr.New(apperr.Conflict, "payment belongs to another user")
)

// Repository хранилище платежей.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreatePayment(ctx context.Context, p models.Payment) (int64, error)
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	TransitionPayment(ctx context.Context, paymentID string, to models.PaymentStatus, at time.Time) (int64, bool, error)
	ListPayments(ctx context.Context, userID int64) ([]models.Payment, error)
}

// Gateway платёжный шлюз.
type Gateway interface {
	CreatePayment(ctx context.Context, req paymentprovider.CreatePaymentRequest) (*paymentprovider.CreatePaymentResponse, error)
}

// Renewer продлевает оплаченную подписку.
type Renewer interface {
	ExtendPaid(ctx context.Context, userID int64) (*models.Period, error)
	Invalidate(ctx context.Context, userID int64)
}

// Options параметры платежа из конфигурации.
type Options struct {
	Amount      string
	Currency    string
	Methods     []string
	ReturnURL   string
	Description string
}

// Service платёжный сервис.
type Service struct {
	repo    Repository
	gateway Gateway
	renewer Renewer
	clock   clockwork.Clock
	log     *slog.Logger
	opts    Options

	notifier Notifier
}

// New создаёт платёжный сервис.
func New(repo Repository, gateway Gateway, renewer Renewer, clock clockwork.Clock, log *slog.Logger, opts Options) *Service {
	if opts.Description == "" {
		opts.Description = "VPN subscription"
	}
	return &Service{
		repo:    repo,
		gateway: gateway,
		renewer: renewer,
		clock:   clock,
		log:     log,
		opts:    opts,
	}
}

// CreatePayment создаёт платёж в шлюзе и сохраняет его в статусе pending.
// Сумма и валюта берутся из конфигурации, клиент выбирает только способ оплаты.
func (s *Service) CreatePayment(ctx context.Context, userID int64, method string) (*models.PaymentCreated, error) {
	const op = "payment.CreatePayment"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID), slog.String("method", method))

	if !slices.Contains(s.opts.Methods, method) {
		return nil, fmt.Errorf("%s: %w", op, ErrUnsupportedMethod)
	}

	resp, err := s.gateway.CreatePayment(ctx, paymentprovider.CreatePaymentRequest{
		Amount:            paymentprovider.Amount{Value: s.opts.Amount, Currency: s.opts.Currency},
		PaymentMethodData: paymentprovider.PaymentMethodData{Type: method},
		Confirmation:      paymentprovider.Confirmation{Type: "redirect", ReturnURL: s.opts.ReturnURL},
		Capture:           true,
		Description:       s.opts.Description,
		Metadata:          map[string]string{"user_id": strconv.FormatInt(userID, 10)},
	})
	if err != nil {
		log.Error("payment gateway failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, apperr.Wrap(apperr.Upstream, "payment gateway failed", err))
	}

	now := s.clock.Now().UTC()
	payment := models.Payment{
		UserID:    userID,
		Amount:    s.opts.Amount,
		Currency:  s.opts.Currency,
		PaymentID: resp.ID,
		Status:    models.PaymentPending,
		Method:    method,
		Meta: map[string]string{
			"user_id":        strconv.FormatInt(userID, 10),
			"gateway_status": resp.Status,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err = s.repo.CreatePayment(ctx, payment); err != nil {
		log.Error("failed to save payment", sl.Err(err), slog.String("payment_id", resp.ID))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("payment created", slog.String("payment_id", resp.ID))
	return &models.PaymentCreated{
		PaymentID:       resp.ID,
		Status:          models.PaymentStatus(resp.Status),
		ConfirmationURL: resp.Confirmation.ConfirmationURL,
	}, nil
}

// ListPayments возвращает историю платежей пользователя.
func (s *Service) ListPayments(ctx context.Context, userID int64) ([]models.Payment, error) {
	const op = "payment.ListPayments"
	payments, err := s.repo.ListPayments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}
