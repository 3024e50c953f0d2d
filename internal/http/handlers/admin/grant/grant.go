// Package grant ручная выдача периода администратором.
package grant

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/request"
	"github.com/magabrotheeeer/vpn-subscription/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// Request вид и длительность периода.
type Request struct {
	Kind string `json:"kind" validate:"required,oneof=trial paid"`
	Days int    `json:"days" validate:"gt=0"`
}

// Service выдача периода.
type Service interface {
	Grant(ctx context.Context, userID int64, kind models.PeriodKind, days int) (*models.Period, error)
}

// Handler обработчик выдачи периода.
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
// @Summary Выдать период
// @Description Продлевает подписку пользователя так же, как оплата или пробный период.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path int true "ID пользователя"
// @Param request body Request true "Период"
// @Success 201 {object} response.Response{data=models.Period}
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Пробный период уже использован"
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/users/{id}/grant [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.grant"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	var req Request
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	period, err := h.service.Grant(r.Context(), userID, models.PeriodKind(req.Kind), req.Days)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("period granted", slog.Int64("user_id", userID), slog.String("kind", req.Kind), slog.Int("days", req.Days))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(period))
}
