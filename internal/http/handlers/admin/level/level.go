// Package level смена тарифа устройств пользователя.
package level

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
)

// Request новый уровень. Указатель отличает 0 от отсутствующего поля.
type Request struct {
	Level *int `json:"level" validate:"required"`
}

// Service смена уровня подписки.
type Service interface {
	SetLevel(ctx context.Context, userID int64, level int) error
}

// Handler обработчик смены уровня.
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
// @Summary Уровень подписки
// @Description 0 базовый лимит устройств, 1 расширенный.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path int true "ID пользователя"
// @Param request body Request true "Уровень"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/users/{id}/level [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.level"
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

	if err := h.service.SetLevel(r.Context(), userID, *req.Level); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]int{"subscription_level": *req.Level}))
}
