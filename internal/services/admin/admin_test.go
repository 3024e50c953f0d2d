package admin

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
)

var baseTime = time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) ListUsers(ctx context.Context, filter models.UserFilter, now time.Time) ([]models.UserRow, int, error) {
	args := m.Called(ctx, filter, now)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.UserRow), args.Int(1), args.Error(2)
}

func (m *RepoMock) SetSubscriptionLevel(ctx context.Context, id int64, level int) error {
	return m.Called(ctx, id, level).Error(0)
}

func (m *RepoMock) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	return m.Called(ctx, username, isAdmin).Error(0)
}

type GranterMock struct {
	mock.Mock
}

func (m *GranterMock) Grant(ctx context.Context, userID int64, kind models.PeriodKind, days int) (*models.Period, error) {
	args := m.Called(ctx, userID, kind, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Period), args.Error(1)
}

func newService(repo *RepoMock, granter *GranterMock) *Service {
	return New(repo, granter, clockwork.NewFakeClockAt(baseTime), newNoopLogger())
}

func TestService_ListUsers(t *testing.T) {
	paidEnd := baseTime.Add(10 * 24 * time.Hour)
	staleTrial := baseTime.Add(-time.Hour)
	rows := []models.UserRow{
		{User: models.User{ID: 1, Username: "paid"}, PaidEnd: &paidEnd, DeviceCount: 2},
		{User: models.User{ID: 2, Username: "stale"}, TrialEnd: &staleTrial},
	}

	repo := new(RepoMock)
	repo.On("ListUsers", mock.Anything, models.UserFilter{Status: models.FilterAll, Page: 1, PerPage: 20}, baseTime).
		Return(rows, 42, nil).Once()

	page, err := newService(repo, new(GranterMock)).ListUsers(context.Background(), models.UserFilter{Page: -3})
	require.NoError(t, err)

	assert.Equal(t, 42, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PerPage)
	require.Len(t, page.Users, 2)
	assert.True(t, page.Users[0].Entitlement.IsPaid)
	assert.True(t, page.Users[0].Entitlement.CanUse)
	assert.Equal(t, 2, page.Users[0].DeviceCount)
	assert.False(t, page.Users[1].Entitlement.IsTrial, "активный в журнале, но истёкший пробный период не даёт доступа")
	assert.False(t, page.Users[1].Entitlement.CanUse)
	repo.AssertExpectations(t)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   models.UserFilter
		want models.UserFilter
	}{
		{
			name: "значения по умолчанию",
			in:   models.UserFilter{},
			want: models.UserFilter{Status: "all", Page: 1, PerPage: 20},
		},
		{
			name: "слишком большая страница",
			in:   models.UserFilter{Status: " Paid ", Page: 3, PerPage: 1000},
			want: models.UserFilter{Status: "paid", Page: 3, PerPage: 100},
		},
		{
			name: "сохраняет сортировку и поиск",
			in:   models.UserFilter{Query: "ali", Sort: "created_at", Desc: true, Page: 2, PerPage: 5},
			want: models.UserFilter{Query: "ali", Status: "all", Sort: "created_at", Desc: true, Page: 2, PerPage: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.in))
		})
	}
}

func TestService_ListUsersInvalidStatus(t *testing.T) {
	repo := new(RepoMock)
	_, err := newService(repo, new(GranterMock)).ListUsers(context.Background(), models.UserFilter{Status: "vip"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	repo.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_SetLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		repoErr error
		call    bool
		wantErr error
	}{
		{name: "расширенный тариф", level: 1, call: true},
		{name: "базовый тариф", level: 0, call: true},
		{name: "неизвестный тариф", level: 2, wantErr: ErrInvalidLevel},
		{name: "пользователь не найден", level: 1, call: true, repoErr: storage.ErrNotFound, wantErr: ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			if tt.call {
				repo.On("SetSubscriptionLevel", mock.Anything, int64(5), tt.level).Return(tt.repoErr).Once()
			}
			err := newService(repo, new(GranterMock)).SetLevel(context.Background(), 5, tt.level)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Grant(t *testing.T) {
	granter := new(GranterMock)
	end := baseTime.Add(7 * 24 * time.Hour)
	granter.On("Grant", mock.Anything, int64(5), models.KindPaid, 7).
		Return(&models.Period{UserID: 5, Kind: models.KindPaid, EndDate: end}, nil).Once()
	granter.On("Grant", mock.Anything, int64(6), models.KindTrial, 3).
		Return(nil, apperr.New(apperr.Conflict, "trial already used")).Once()

	svc := newService(new(RepoMock), granter)

	p, err := svc.Grant(context.Background(), 5, models.KindPaid, 7)
	require.NoError(t, err)
	assert.Equal(t, end, p.EndDate)

	_, err = svc.Grant(context.Background(), 6, models.KindTrial, 3)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	granter.AssertExpectations(t)
}

func TestService_Promote(t *testing.T) {
	repo := new(RepoMock)
	repo.On("SetAdmin", mock.Anything, "alice", true).Return(nil).Once()
	repo.On("SetAdmin", mock.Anything, "ghost", true).Return(storage.ErrNotFound).Once()
	svc := newService(repo, new(GranterMock))

	require.NoError(t, svc.Promote(context.Background(), "alice", true))
	assert.ErrorIs(t, svc.Promote(context.Background(), "ghost", true), ErrUserNotFound)
	repo.AssertExpectations(t)
}
