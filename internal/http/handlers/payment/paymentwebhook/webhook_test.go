package paymentwebhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/payment"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) HandleTerminal(ctx context.Context, paymentID string, status models.PaymentStatus, metadata map[string]string) (payment.Outcome, error) {
	args := m.Called(ctx, paymentID, status, metadata)
	return args.Get(0).(payment.Outcome), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const secret = "whsec"

func TestWebhookHandler(t *testing.T) {
	succeeded := `{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded","metadata":{"user_id":"7"}}}`
	canceled := `{"event":"payment.canceled","object":{"id":"pay-2","status":"canceled","metadata":{"user_id":"7"}}}`
	meta := map[string]string{"user_id": "7"}

	tests := []struct {
		name           string
		body           string
		signature      string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:      "успешная оплата",
			body:      succeeded,
			signature: Sign(secret, []byte(succeeded)),
			setupMock: func(m *MockService) {
				m.On("HandleTerminal", mock.Anything, "pay-1", models.PaymentSucceeded, meta).Return(payment.OutcomeApplied, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"outcome":"applied"`,
		},
		{
			name:      "повторная доставка",
			body:      succeeded,
			signature: Sign(secret, []byte(succeeded)),
			setupMock: func(m *MockService) {
				m.On("HandleTerminal", mock.Anything, "pay-1", models.PaymentSucceeded, meta).Return(payment.OutcomeDuplicate, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"outcome":"duplicate"`,
		},
		{
			name:      "отмена",
			body:      canceled,
			signature: Sign(secret, []byte(canceled)),
			setupMock: func(m *MockService) {
				m.On("HandleTerminal", mock.Anything, "pay-2", models.PaymentCanceled, meta).Return(payment.OutcomeApplied, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"outcome":"applied"`,
		},
		{
			name:           "неверная подпись",
			body:           succeeded,
			signature:      Sign("other", []byte(succeeded)),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"invalid signature"`,
		},
		{
			name:           "нет подписи",
			body:           succeeded,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"invalid signature"`,
		},
		{
			name:           "прочие события игнорируются",
			body:           `{"event":"payment.waiting_for_capture","object":{"id":"pay-3"}}`,
			signature:      Sign(secret, []byte(`{"event":"payment.waiting_for_capture","object":{"id":"pay-3"}}`)),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "битый JSON",
			body:           `{"event":`,
			signature:      Sign(secret, []byte(`{"event":`)),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:      "нет user_id",
			body:      `{"event":"payment.succeeded","object":{"id":"pay-4","metadata":{}}}`,
			signature: Sign(secret, []byte(`{"event":"payment.succeeded","object":{"id":"pay-4","metadata":{}}}`)),
			setupMock: func(m *MockService) {
				m.On("HandleTerminal", mock.Anything, "pay-4", models.PaymentSucceeded, map[string]string{}).
					Return(payment.Outcome(""), fmt.Errorf("payment.HandleTerminal: %w", payment.ErrMissingUserID))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `metadata.user_id`,
		},
		{
			name:      "неизвестный платёж",
			body:      succeeded,
			signature: Sign(secret, []byte(succeeded)),
			setupMock: func(m *MockService) {
				m.On("HandleTerminal", mock.Anything, "pay-1", models.PaymentSucceeded, meta).
					Return(payment.Outcome(""), payment.ErrPaymentNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"payment not found"`,
		},
		{
			name:      "конфликт статусов",
			body:      succeeded,
			signature: Sign(secret, []byte(succeeded)),
			setupMock: func(m *MockService) {
				m.On("HandleTerminal", mock.Anything, "pay-1", models.PaymentSucceeded, meta).
					Return(payment.Outcome(""), payment.ErrStatusConflict)
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("X-Api-Signature", tt.signature)
			}
			w := httptest.NewRecorder()

			New(newNoopLogger(), svc, secret).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_NoSecret(t *testing.T) {
	body := `{"event":"payment.canceled","object":{"id":"pay-9","metadata":{"user_id":"3"}}}`
	svc := new(MockService)
	svc.On("HandleTerminal", mock.Anything, "pay-9", models.PaymentCanceled, map[string]string{"user_id": "3"}).
		Return(payment.OutcomeApplied, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()

	New(newNoopLogger(), svc, "").ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
