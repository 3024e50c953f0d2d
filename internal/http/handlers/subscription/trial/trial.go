// Package trial запускает пробный период, если он ещё не использован.
package trial

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

// Service выдача пробного периода.
type Service interface {
	StartTrial(ctx context.Context, userID int64) (*models.Period, error)
}

// Handler обработчик запуска пробного периода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Пробный период
// @Description Выдаёт пробный период. Повторная выдача невозможна.
// @Tags Subscription
// @Produce  json
// @Security BearerAuth
// @Success 201 {object} response.Response{data=models.Period}
// @Failure 409 {object} response.ErrorResponse "Пробный период уже использован"
// @Router /subscription/trial [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.trial"

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

	period, err := h.service.StartTrial(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("trial started", slog.Int64("user_id", userID), slog.Time("end_date", period.EndDate))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(period))
}
