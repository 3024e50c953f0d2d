package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

var baseTime = time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindPeriodsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringPeriod, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExpiringPeriod), args.Error(1)
}

func (m *MockRepository) MarkPeriodNotified(ctx context.Context, periodID int64, at time.Time) error {
	return m.Called(ctx, periodID, at).Error(0)
}

func (m *MockRepository) PurgeExpiredPendingUsers(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) PurgeExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) ExpireStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func newService(repo *MockRepository, sweeper *MockSweeper, pub *MockPublisher) *Service {
	return New(repo, sweeper, pub, clockwork.NewFakeClockAt(baseTime), newNoopLogger(), 24*time.Hour)
}

func TestService_RunExpiryNotices(t *testing.T) {
	periods := []models.ExpiringPeriod{
		{PeriodID: 1, UserID: 10, Username: "alice", Email: "alice@example.com", Kind: models.KindTrial, EndDate: baseTime.Add(3 * time.Hour)},
		{PeriodID: 2, UserID: 11, Username: "bob", Email: "bob@example.com", Kind: models.KindPaid, EndDate: baseTime.Add(20 * time.Hour)},
	}

	t.Run("все уведомления опубликованы", func(t *testing.T) {
		repo, pub := new(MockRepository), new(MockPublisher)
		repo.On("FindPeriodsExpiringBetween", mock.Anything, baseTime, baseTime.Add(24*time.Hour)).Return(periods, nil).Once()
		pub.On("Publish", mock.Anything, "expiring", mock.MatchedBy(func(n models.Notification) bool {
			return n.PeriodID == 1 && n.Email == "alice@example.com" && n.Kind == models.KindTrial
		})).Return(nil).Once()
		pub.On("Publish", mock.Anything, "expiring", mock.MatchedBy(func(n models.Notification) bool {
			return n.PeriodID == 2
		})).Return(nil).Once()
		repo.On("MarkPeriodNotified", mock.Anything, int64(1), baseTime).Return(nil).Once()
		repo.On("MarkPeriodNotified", mock.Anything, int64(2), baseTime).Return(nil).Once()

		sent, err := newService(repo, new(MockSweeper), pub).RunExpiryNotices(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, sent)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("неудачная публикация не помечает период", func(t *testing.T) {
		repo, pub := new(MockRepository), new(MockPublisher)
		repo.On("FindPeriodsExpiringBetween", mock.Anything, mock.Anything, mock.Anything).Return(periods, nil).Once()
		pub.On("Publish", mock.Anything, "expiring", mock.MatchedBy(func(n models.Notification) bool {
			return n.PeriodID == 1
		})).Return(errors.New("channel closed")).Once()
		pub.On("Publish", mock.Anything, "expiring", mock.MatchedBy(func(n models.Notification) bool {
			return n.PeriodID == 2
		})).Return(nil).Once()
		repo.On("MarkPeriodNotified", mock.Anything, int64(2), baseTime).Return(nil).Once()

		sent, err := newService(repo, new(MockSweeper), pub).RunExpiryNotices(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, sent)
		repo.AssertNotCalled(t, "MarkPeriodNotified", mock.Anything, int64(1), mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("нечего уведомлять", func(t *testing.T) {
		repo, pub := new(MockRepository), new(MockPublisher)
		repo.On("FindPeriodsExpiringBetween", mock.Anything, mock.Anything, mock.Anything).
			Return([]models.ExpiringPeriod{}, nil).Once()

		sent, err := newService(repo, new(MockSweeper), pub).RunExpiryNotices(context.Background())
		require.NoError(t, err)
		assert.Zero(t, sent)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ошибка выборки", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("FindPeriodsExpiringBetween", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("db down")).Once()

		_, err := newService(repo, new(MockSweeper), new(MockPublisher)).RunExpiryNotices(context.Background())
		assert.Error(t, err)
	})
}

func TestService_RunSweep(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		err     error
		wantErr bool
	}{
		{name: "истёкшие периоды", n: 3},
		{name: "нет истёкших", n: 0},
		{name: "ошибка БД", err: errors.New("db down"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweeper := new(MockSweeper)
			sweeper.On("ExpireStale", mock.Anything).Return(tt.n, tt.err).Once()

			err := newService(new(MockRepository), sweeper, new(MockPublisher)).RunSweep(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			sweeper.AssertExpectations(t)
		})
	}
}

func TestService_RunPurge(t *testing.T) {
	repo := new(MockRepository)
	repo.On("PurgeExpiredPendingUsers", mock.Anything, baseTime).Return(int64(2), nil).Once()
	repo.On("PurgeExpiredPasswordResets", mock.Anything, baseTime).Return(int64(1), nil).Once()

	require.NoError(t, newService(repo, new(MockSweeper), new(MockPublisher)).RunPurge(context.Background()))
	repo.AssertExpectations(t)

	failing := new(MockRepository)
	failing.On("PurgeExpiredPendingUsers", mock.Anything, baseTime).Return(int64(0), errors.New("db down")).Once()
	assert.Error(t, newService(failing, new(MockSweeper), new(MockPublisher)).RunPurge(context.Background()))
	failing.AssertNotCalled(t, "PurgeExpiredPasswordResets", mock.Anything, mock.Anything)
}
