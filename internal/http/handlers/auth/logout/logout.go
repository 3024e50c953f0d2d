// Package logout завершает сессию пользователя.
package logout

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
)

// Request необязательный токен устройства, которое нужно отвязать.
type Request struct {
	DeviceToken string `json:"device_token,omitempty" validate:"max=255"`
}

// Service завершение сессии.
type Service interface {
	Logout(ctx context.Context, userID int64, deviceToken string) error
}

// Handler обработчик выхода.
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
// @Summary Выход
// @Description Завершает текущую сессию. Переданное устройство отвязывается.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request false "Устройство"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	var req Request
	if r.ContentLength != 0 && !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), userID, req.DeviceToken); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("user logged out", slog.Int64("user_id", userID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"logged_out": true}))
}
