// Package vpn собирает параметры подключения клиента к WireGuard.
package vpn

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

var (
	// ErrSubscriptionRequired нет действующего пробного или оплаченного периода.
	ErrSubscriptionRequired = apperr.New(apperr.Forbidden, "active subscription required")
	// ErrKeysNotFound у пользователя нет выданных ключей.
	ErrKeysNotFound = apperr.New(apperr.NotFound, "vpn keys not found")
)

// Users источник ключевого материала пользователя.
type Users interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Entitlements право доступа пользователя.
type Entitlements interface {
	Evaluate(ctx context.Context, userID int64) (models.Entitlement, error)
}

// Service выдаёт конфигурацию VPN.
type Service struct {
	users        Users
	entitlements Entitlements
	cfg          config.VPN
}

// New создаёт Service.
func New(users Users, entitlements Entitlements, cfg config.VPN) *Service {
	return &Service{users: users, entitlements: entitlements, cfg: cfg}
}

// Config возвращает параметры подключения, если у пользователя есть действующий период.
func (s *Service) Config(ctx context.Context, userID int64) (*models.VPNConfig, error) {
	const op = "vpn.Config"

	ent, err := s.entitlements.Evaluate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ent.CanUse {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionRequired)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrKeysNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.VPNKey == "" || user.ClientIP == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrKeysNotFound)
	}

	return &models.VPNConfig{
		PrivateKey:      user.VPNKey,
		Address:         user.ClientIP,
		DNS:             s.cfg.DNS,
		ServerPublicKey: s.cfg.ServerPublicKey,
		Endpoint:        s.cfg.Endpoint,
		AllowedIPs:      s.cfg.AllowedIPs,
	}, nil
}
