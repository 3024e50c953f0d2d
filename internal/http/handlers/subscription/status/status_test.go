package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Evaluate(ctx context.Context, userID int64) (models.Entitlement, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Entitlement), args.Error(1)
}

func (m *MockService) History(ctx context.Context, userID int64) ([]models.Period, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Period), args.Error(1)
}

type MockDevices struct {
	mock.Mock
}

func (m *MockDevices) Limits(ctx context.Context, userID int64) (int, int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRequest(userID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/subscription", nil)
	return req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, userID))
}

func TestStatusHandler(t *testing.T) {
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("активная оплата", func(t *testing.T) {
		svc, devices := new(MockService), new(MockDevices)
		svc.On("Evaluate", mock.Anything, int64(3)).Return(models.Entitlement{IsPaid: true, CanUse: true, ActiveEndDate: &end, PaidEndDate: &end}, nil)
		svc.On("History", mock.Anything, int64(3)).Return([]models.Period{{ID: 1, UserID: 3, Kind: models.KindPaid, Status: models.StatusActive, EndDate: end}}, nil)
		devices.On("Limits", mock.Anything, int64(3)).Return(2, 3, nil)

		w := httptest.NewRecorder()
		New(newNoopLogger(), svc, devices).ServeHTTP(w, newRequest(3))

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data models.SubscriptionStatus `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Data.CanUse)
		assert.True(t, resp.Data.IsPaid)
		assert.Equal(t, 2, resp.Data.DeviceCount)
		assert.Equal(t, 3, resp.Data.MaxDevices)
		assert.Len(t, resp.Data.Periods, 1)
	})

	t.Run("без периодов отдаёт пустой список", func(t *testing.T) {
		svc, devices := new(MockService), new(MockDevices)
		svc.On("Evaluate", mock.Anything, int64(4)).Return(models.Entitlement{}, nil)
		svc.On("History", mock.Anything, int64(4)).Return(nil, nil)
		devices.On("Limits", mock.Anything, int64(4)).Return(0, 3, nil)

		w := httptest.NewRecorder()
		New(newNoopLogger(), svc, devices).ServeHTTP(w, newRequest(4))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"periods":[]`)
		assert.Contains(t, w.Body.String(), `"can_use":false`)
	})

	t.Run("ошибка хранилища", func(t *testing.T) {
		svc, devices := new(MockService), new(MockDevices)
		svc.On("Evaluate", mock.Anything, int64(5)).Return(models.Entitlement{}, errors.New("db down"))

		w := httptest.NewRecorder()
		New(newNoopLogger(), svc, devices).ServeHTTP(w, newRequest(5))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"error":"internal error"`)
		assert.NotContains(t, w.Body.String(), "db down")
	})

	t.Run("без авторизации", func(t *testing.T) {
		w := httptest.NewRecorder()
		New(newNoopLogger(), new(MockService), new(MockDevices)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscription", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
