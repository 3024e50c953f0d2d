package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/metrics"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

// Outcome результат обработки итогового статуса.
type Outcome string

const (
	// OutcomeApplied статус записан впервые.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate повторная доставка того же статуса, ничего не изменено.
	OutcomeDuplicate Outcome = "duplicate"
)

// UserIDFromMetadata достаёт ID пользователя из метаданных платежа.
func UserIDFromMetadata(metadata map[string]string) (int64, error) {
	raw := strings.TrimSpace(metadata["user_id"])
	if raw == "" {
		return 0, ErrMissingUserID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMissingUserID
	}
	return id, nil
}

// HandleTerminal применяет итоговый статус платежа.
//
// Статус меняется только из pending, поэтому повторная доставка того же события
// ничего не делает. При succeeded оплаченная подписка продлевается в той же
// транзакции, что и смена статуса. user_id из метаданных должен совпадать с
// владельцем платежа, иначе транзакция откатывается.
func (s *Service) HandleTerminal(ctx context.Context, paymentID string, status models.PaymentStatus, metadata map[string]string) (Outcome, error) {
	const op = "payment.HandleTerminal"
	log := s.log.With(slog.String("op", op), slog.String("payment_id", paymentID), slog.String("status", string(status)))

	if !status.Terminal() {
		return "", fmt.Errorf("%s: %w", op, ErrNotTerminal)
	}
	userID, err := UserIDFromMetadata(metadata)
	if err != nil {
		metrics.RecordWebhook(string(status), "invalid")
		return "", fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(slog.Int64("user_id", userID))

	outcome := OutcomeApplied
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		ownerID, changed, err := s.repo.TransitionPayment(ctx, paymentID, status, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if !changed {
			current, err := s.repo.GetPayment(ctx, paymentID)
			if errors.Is(err, storage.ErrNotFound) {
				return ErrPaymentNotFound
			}
			if err != nil {
				return err
			}
			if current.Status == status {
				outcome = OutcomeDuplicate
				return nil
			}
			return ErrStatusConflict
		}
		if ownerID != userID {
			log.Warn("payment owner mismatch", slog.Int64("owner_id", ownerID))
			return ErrOwnerMismatch
		}

		if status == models.PaymentSucceeded {
			if _, err := s.renewer.ExtendPaid(ctx, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, ErrStatusConflict):
			result = "conflict"
		case errors.Is(err, ErrOwnerMismatch):
			result = "owner_mismatch"
		case errors.Is(err, ErrPaymentNotFound):
			result = "unknown"
		}
		metrics.RecordWebhook(string(status), result)
		log.Error("failed to apply payment status", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordWebhook(string(status), string(outcome))
	if outcome == OutcomeDuplicate {
		log.Info("duplicate payment notification ignored")
		return outcome, nil
	}

	if status == models.PaymentSucceeded {
		s.renewer.Invalidate(ctx, userID)
		s.notifyPaid(ctx, log, userID, paymentID)
	}
	log.Info("payment status applied")
	return outcome, nil
}
