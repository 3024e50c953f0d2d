// Package validate возвращает данные пользователя по действующему токену.
package validate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// Service проверка токена.
type Service interface {
	ValidateToken(ctx context.Context, token string) (*models.User, models.Entitlement, error)
}

// Handler обработчик проверки токена.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Проверка токена
// @Description Возвращает пользователя и состояние подписки для текущего JWT.
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/validate [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.validate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, _ := r.Context().Value(middlewarectx.Token).(string)
	user, ent, err := h.service.ValidateToken(r.Context(), token)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"valid":        true,
		"user":         user,
		"subscription": ent,
	}))
}
