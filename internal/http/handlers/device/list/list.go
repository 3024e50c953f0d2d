// Package list возвращает устройства пользователя.
package list

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

// Service реестр устройств.
type Service interface {
	ListDevices(ctx context.Context, userID int64) ([]models.Device, error)
}

// Handler обработчик списка устройств.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список устройств
// @Tags Devices
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Device}
// @Router /devices [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.device.list"

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

	devices, err := h.service.ListDevices(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	render.JSON(w, r, response.StatusOKWithData(devices))
}
