// Package paymentwebhook принимает уведомления ЮKassa об итоговом статусе платежа.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/payment"
)

const maxBodyBytes = 1 << 20

// События, которые меняют статус платежа.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
)

// Service применяет итоговый статус платежа.
type Service interface {
	HandleTerminal(ctx context.Context, paymentID string, status models.PaymentStatus, metadata map[string]string) (payment.Outcome, error)
}

// Handler обработчик webhook платёжного шлюза.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи, пустой отключает проверку
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload тело уведомления.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// Sign возвращает подпись тела в формате заголовка X-Api-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" {
		return true
	}
	return hmac.Equal([]byte(Sign(h.webhookSecret, body)), []byte(signature))
}

// ServeHTTP godoc
// @Summary Webhook платёжного шлюза
// @Description Применяет статусы succeeded и canceled. Остальные события подтверждаются без обработки.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param X-Api-Signature header string false "base64 HMAC-SHA256 тела"
// @Param request body Payload true "Уведомление"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Нет user_id в метаданных"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Платёж не найден"
// @Failure 409 {object} response.ErrorResponse "Платёж уже в другом итоговом статусе"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-Api-Signature")) {
		log.Warn("invalid or missing webhook signature")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log = log.With(slog.String("event", payload.Event), slog.String("payment_id", payload.Object.ID))

	var status models.PaymentStatus
	switch strings.ToLower(payload.Event) {
	case EventPaymentSucceeded:
		status = models.PaymentSucceeded
	case EventPaymentCanceled:
		status = models.PaymentCanceled
	default:
		log.Info("ignored webhook event")
		render.JSON(w, r, response.Response{Status: response.StatusOK})
		return
	}

	if payload.Object.ID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("object.id is required"))
		return
	}

	outcome, err := h.service.HandleTerminal(r.Context(), payload.Object.ID, status, payload.Object.Metadata)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("webhook processed", slog.String("outcome", string(outcome)))
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"outcome": string(outcome)}))
}
