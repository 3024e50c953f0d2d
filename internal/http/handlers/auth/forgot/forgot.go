// Package forgot запрос кода сброса пароля.
package forgot

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/request"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/response"
)

// Request почта аккаунта.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Service отправка кода сброса.
type Service interface {
	ForgotPassword(ctx context.Context, email string) error
}

// Handler обработчик запроса сброса пароля.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Забыли пароль
// @Description Отправляет код сброса. Ответ одинаков для известной и неизвестной почты.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Почта"
// @Success 202 {object} response.Response
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /auth/forgot [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.forgot"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "if the email is registered, a reset code has been sent",
	}))
}
