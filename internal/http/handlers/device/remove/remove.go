// Package remove отвязывает устройство пользователя.
package remove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/response"
)

// Service реестр устройств.
type Service interface {
	RemoveDevice(ctx context.Context, userID int64, token string) error
}

// Handler обработчик удаления устройства.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Удаление устройства
// @Tags Devices
// @Produce  json
// @Security BearerAuth
// @Param token path string true "Токен устройства"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /devices/{token} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.device.remove"

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

	token := chi.URLParam(r, "token")
	if err := h.service.RemoveDevice(r.Context(), userID, token); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("device removed", slog.Int64("user_id", userID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"removed": true}))
}
