// Package verify реализует подтверждение почты кодом из письма.
package verify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/request"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// Request — почта и код подтверждения.
type Request struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Service подтверждение регистрации.
type Service interface {
	VerifyEmail(ctx context.Context, email, code string) (*models.User, error)
}

// Handler обработчик подтверждения почты.
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
// @Summary Подтверждение почты
// @Description Создаёт пользователя, выдаёт ключи VPN и пробный период.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Почта и код"
// @Success 201 {object} response.Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Неверный или просроченный код"
// @Failure 404 {object} response.ErrorResponse "Регистрация не найдена"
// @Failure 502 {object} response.ErrorResponse "Не удалось выдать ключи VPN"
// @Router /auth/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("email verified", slog.Int64("user_id", user.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(user))
}
