// Package add регистрирует устройство с учётом лимита тарифа.
package add

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

// Request данные устройства.
type Request struct {
	DeviceToken string `json:"device_token" validate:"required,max=255"`
	DeviceModel string `json:"device_model,omitempty" validate:"max=100"`
	DeviceOS    string `json:"device_os,omitempty" validate:"max=100"`
}

// Service реестр устройств.
type Service interface {
	RegisterDevice(ctx context.Context, userID int64, d models.Device) (*models.Device, error)
}

// Handler обработчик регистрации устройства.
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
// @Summary Регистрация устройства
// @Description Известное устройство обновляет last_seen, новое проверяется по лимиту тарифа.
// @Tags Devices
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Устройство"
// @Success 200 {object} response.Response{data=models.Device}
// @Failure 409 {object} response.ErrorResponse "Превышен лимит устройств"
// @Failure 422 {object} response.ErrorResponse
// @Router /devices [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.device.add"

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
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	device, err := h.service.RegisterDevice(r.Context(), userID, models.Device{
		Token: req.DeviceToken,
		Model: req.DeviceModel,
		OS:    req.DeviceOS,
	})
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(device))
}
