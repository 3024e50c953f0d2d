// Package paymentcreate создаёт платёж за подписку.
package paymentcreate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/request"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// Request запрос на создание платежа. Сумма задаётся конфигурацией.
type Request struct {
	Method string `json:"method" validate:"required"`
}

// Service платёжный сервис.
type Service interface {
	CreatePayment(ctx context.Context, userID int64, method string) (*models.PaymentCreated, error)
}

// Handler обрабатывает запросы на создание платежей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать платеж
// @Description Создает платеж в ЮKassa и возвращает ссылку на подтверждение
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Способ оплаты: bank_card, sbp, sberbank"
// @Success 201 {object} response.Response{data=models.PaymentCreated}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или способ оплаты"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного шлюза"
// @Router /payments [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	created, err := h.service.CreatePayment(r.Context(), userID, req.Method)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(created))
}
