package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// Notifier сообщает пользователю о зачисленном платеже.
type Notifier interface {
	PaymentReceived(ctx context.Context, userID int64, paymentID string) error
}

// Users поиск получателя письма.
type Users interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Mailer отправка письма.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailNotifier отправляет письмо об оплате.
type MailNotifier struct {
	users  Users
	mailer Mailer
}

// NewMailNotifier создаёт MailNotifier.
func NewMailNotifier(users Users, mailer Mailer) *MailNotifier {
	return &MailNotifier{users: users, mailer: mailer}
}

// PaymentReceived отправляет письмо о продлении подписки.
func (n *MailNotifier) PaymentReceived(ctx context.Context, userID int64, paymentID string) error {
	const op = "payment.MailNotifier.PaymentReceived"
	user, err := n.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body := fmt.Sprintf("Здравствуйте, %s!\n\nПлатёж %s получен, подписка продлена.\n", user.Username, paymentID)
	if err := n.mailer.Send(ctx, user.Email, "Оплата получена", body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetNotifier включает уведомления об оплате.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) notifyPaid(ctx context.Context, log *slog.Logger, userID int64, paymentID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PaymentReceived(ctx, userID, paymentID); err != nil {
		log.Warn("payment notification failed", sl.Err(err))
	}
}
