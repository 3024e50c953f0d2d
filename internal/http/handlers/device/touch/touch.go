// Package touch обновляет время последней активности устройства.
package touch

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
	TouchDevice(ctx context.Context, userID int64, token string) error
}

// Handler обработчик heartbeat устройства.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Активность устройства
// @Tags Devices
// @Produce  json
// @Security BearerAuth
// @Param token path string true "Токен устройства"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Router /devices/{token}/touch [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.device.touch"

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

	if err := h.service.TouchDevice(r.Context(), userID, chi.URLParam(r, "token")); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
