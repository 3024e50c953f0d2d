// Package users выдаёт администратору страницу пользователей.
package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-subscription/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// Service выборка пользователей.
type Service interface {
	ListUsers(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
}

// Handler обработчик списка пользователей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ParseFilter читает фильтр из query-параметров. Некорректные числа
// заменяются нулём, значения по умолчанию подставляет сервис.
func ParseFilter(r *http.Request) models.UserFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	desc, _ := strconv.ParseBool(q.Get("desc"))
	return models.UserFilter{
		Query:   q.Get("q"),
		Status:  q.Get("status"),
		Page:    page,
		PerPage: perPage,
		Sort:    q.Get("sort"),
		Desc:    desc,
	}
}

// ServeHTTP godoc
// @Summary Список пользователей
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param q query string false "Подстрока имени или почты"
// @Param status query string false "all, paid, trial, none"
// @Param page query int false "Номер страницы"
// @Param per_page query int false "Размер страницы, до 100"
// @Param sort query string false "id, username, created_at"
// @Param desc query bool false "По убыванию"
// @Success 200 {object} response.Response{data=models.UserPage}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/users [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	page, err := h.service.ListUsers(r.Context(), ParseFilter(r))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(page))
}
