package vpn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

type UsersMock struct {
	mock.Mock
}

func (m *UsersMock) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type EntitlementsMock struct {
	mock.Mock
}

func (m *EntitlementsMock) Evaluate(ctx context.Context, userID int64) (models.Entitlement, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Entitlement), args.Error(1)
}

var vpnCfg = config.VPN{
	ServerPublicKey: "server-pub",
	Endpoint:        "vpn.example.com:51820",
	DNS:             "1.1.1.1",
	AllowedIPs:      "0.0.0.0/0, ::/0",
}

func TestService_Config(t *testing.T) {
	withKeys := &models.User{ID: 1, VPNKey: "priv", ClientIP: "10.8.0.2/32"}

	tests := []struct {
		name    string
		ent     models.Entitlement
		user    *models.User
		userErr error
		want    *models.VPNConfig
		wantErr error
	}{
		{
			name: "активная подписка",
			ent:  models.Entitlement{IsPaid: true, CanUse: true},
			user: withKeys,
			want: &models.VPNConfig{
				PrivateKey:      "priv",
				Address:         "10.8.0.2/32",
				DNS:             "1.1.1.1",
				ServerPublicKey: "server-pub",
				Endpoint:        "vpn.example.com:51820",
				AllowedIPs:      "0.0.0.0/0, ::/0",
			},
		},
		{
			name:    "нет подписки",
			ent:     models.Entitlement{},
			wantErr: ErrSubscriptionRequired,
		},
		{
			name:    "ключи не выданы",
			ent:     models.Entitlement{IsTrial: true, CanUse: true},
			user:    &models.User{ID: 1},
			wantErr: ErrKeysNotFound,
		},
		{
			name:    "пользователь удалён",
			ent:     models.Entitlement{IsTrial: true, CanUse: true},
			userErr: storage.ErrNotFound,
			wantErr: ErrKeysNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UsersMock)
			ents := new(EntitlementsMock)
			ents.On("Evaluate", mock.Anything, int64(1)).Return(tt.ent, nil).Once()
			if tt.user != nil || tt.userErr != nil {
				users.On("GetUserByID", mock.Anything, int64(1)).Return(tt.user, tt.userErr).Once()
			}

			got, err := New(users, ents, vpnCfg).Config(context.Background(), 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			users.AssertExpectations(t)
			ents.AssertExpectations(t)
		})
	}
}

func TestService_ConfigEvaluateError(t *testing.T) {
	ents := new(EntitlementsMock)
	ents.On("Evaluate", mock.Anything, int64(1)).Return(models.Entitlement{}, errors.New("db down")).Once()

	_, err := New(new(UsersMock), ents, vpnCfg).Config(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vpn.Config")
}
