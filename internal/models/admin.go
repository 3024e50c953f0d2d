package models

import "time"

// Фильтры списка пользователей по состоянию подписки.
const (
	FilterAll   = "all"
	FilterPaid  = "paid"
	FilterTrial = "trial"
	FilterNone  = "none"
)

// UserFilter параметры выборки пользователей для администратора.
type UserFilter struct {
	Query   string // Подстрока имени или почты
	Status  string // all | paid | trial | none
	Page    int    // Номер страницы с 1
	PerPage int    // Размер страницы
	Sort    string // Поле сортировки: id | username | created_at
	Desc    bool   // Сортировка по убыванию
}

// UserRow строка выборки: пользователь и концы активных периодов.
type UserRow struct {
	User        User
	TrialEnd    *time.Time
	PaidEnd     *time.Time
	DeviceCount int
	LoginCount  int
	LastLogin   *time.Time
}

// UserSummary пользователь с вычисленным правом доступа.
type UserSummary struct {
	User        User        `json:"user"`
	Entitlement Entitlement `json:"subscription"`
	DeviceCount int         `json:"device_count"`
	LoginCount  int         `json:"login_count"`
	LastLogin   *time.Time  `json:"last_login,omitempty"`
}

// UserPage страница выборки пользователей.
type UserPage struct {
	Users   []UserSummary `json:"users"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}
