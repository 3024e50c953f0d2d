// Package status возвращает состояние подписки пользователя.
package status

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

// Service право доступа и журнал периодов.
type Service interface {
	Evaluate(ctx context.Context, userID int64) (models.Entitlement, error)
	History(ctx context.Context, userID int64) ([]models.Period, error)
}

// Devices число устройств и лимит тарифа.
type Devices interface {
	Limits(ctx context.Context, userID int64) (count, limit int, err error)
}

// Handler обработчик статуса подписки.
type Handler struct {
	log     *slog.Logger
	service Service
	devices Devices
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, devices Devices) *Handler {
	return &Handler{log: log, service: service, devices: devices}
}

// ServeHTTP godoc
// @Summary Статус подписки
// @Description Право доступа на текущий момент, история периодов и использование лимита устройств.
// @Tags Subscription
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.SubscriptionStatus}
// @Failure 401 {object} response.ErrorResponse
// @Router /subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"

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

	ent, err := h.service.Evaluate(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	periods, err := h.service.History(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	count, limit, err := h.devices.Limits(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if periods == nil {
		periods = []models.Period{}
	}

	render.JSON(w, r, response.StatusOKWithData(models.SubscriptionStatus{
		Entitlement: ent,
		DeviceCount: count,
		MaxDevices:  limit,
		Periods:     periods,
	}))
}
