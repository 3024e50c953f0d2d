package middlewarectx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) ValidateToken(ctx context.Context, token string) (*models.User, models.Entitlement, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*models.User)
	return user, args.Get(1).(models.Entitlement), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJWTMiddleware(t *testing.T) {
	ent := models.Entitlement{IsPaid: true, CanUse: true}

	tests := []struct {
		name           string
		authHeader     string
		mockUser       *models.User
		mockErr        error
		callService    bool
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "нет заголовка",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "не Bearer",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "токен не прошёл проверку",
			authHeader:     "Bearer token",
			mockErr:        errors.New("invalid token"),
			callService:    true,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "валидный токен",
			authHeader:     "Bearer validtoken",
			mockUser:       &models.User{ID: 7, Username: "alice", IsAdmin: true},
			callService:    true,
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authMock := new(AuthServiceMock)
			if tt.callService {
				authMock.On("ValidateToken", mock.Anything, "validtoken").Return(tt.mockUser, ent, tt.mockErr).Maybe()
				authMock.On("ValidateToken", mock.Anything, "token").Return(tt.mockUser, models.Entitlement{}, tt.mockErr).Maybe()
			}

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				id, ok := UserIDFrom(r.Context())
				assert.True(t, ok)
				assert.Equal(t, int64(7), id)
				assert.Equal(t, "alice", r.Context().Value(User))
				assert.Equal(t, models.RoleAdmin, r.Context().Value(Role))
				got, ok := EntitlementFrom(r.Context())
				assert.True(t, ok)
				assert.True(t, got.CanUse)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/somepath", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			JWTMiddleware(authMock, newNoopLogger())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			authMock.AssertExpectations(t)
		})
	}
}

func withValues(r *http.Request, kv map[Key]any) *http.Request {
	ctx := r.Context()
	for k, v := range kv {
		ctx = context.WithValue(ctx, k, v)
	}
	return r.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name string
		role any
		want int
	}{
		{name: "администратор", role: models.RoleAdmin, want: http.StatusOK},
		{name: "обычный пользователь", role: models.RoleUser, want: http.StatusForbidden},
		{name: "нет роли", role: nil, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withValues(httptest.NewRequest(http.MethodGet, "/admin/users", nil), map[Key]any{Role: tt.role})
			rec := httptest.NewRecorder()
			AdminOnly(newNoopLogger())(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSubscriptionStatusMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		values map[Key]any
		want   int
	}{
		{
			name:   "активная подписка",
			values: map[Key]any{UserID: int64(1), Entitlement: models.Entitlement{IsTrial: true, CanUse: true}},
			want:   http.StatusOK,
		},
		{
			name:   "подписка истекла",
			values: map[Key]any{UserID: int64(1), Entitlement: models.Entitlement{}},
			want:   http.StatusForbidden,
		},
		{
			name:   "нет пользователя",
			values: map[Key]any{},
			want:   http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withValues(httptest.NewRequest(http.MethodGet, "/vpn/config", nil), tt.values)
			rec := httptest.NewRecorder()
			SubscriptionStatusMiddleware(newNoopLogger())(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "запас исчерпан")
	assert.True(t, l.Allow("10.0.0.2"), "у другого адреса свой лимит")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "за секунду восполняется один запрос")

	now = now.Add(limiterIdleTTL + 2*time.Minute)
	l.Allow("10.0.0.3")
	l.mu.Lock()
	_, kept := l.visitors["10.0.0.2"]
	l.mu.Unlock()
	assert.False(t, kept, "неактивные адреса удаляются")
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(NewIPRateLimiter(0.001, 1), newNoopLogger())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
