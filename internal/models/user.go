// Package models содержит доменную модель пользователя системы,
// ожидающей регистрации, сброса пароля и статистики входов.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

const (
	// RoleUser роль обычного пользователя.
	RoleUser = "user"
	// RoleAdmin роль администратора.
	RoleAdmin = "admin"
)

// User представляет зарегистрированного пользователя VPN.
type User struct {
	ID                int64      `json:"id"`                  // Идентификатор пользователя
	Username          string     `json:"username"`            // Имя пользователя (уникальное)
	Email             string     `json:"email"`               // Электронная почта (уникальная)
	PasswordHash      string     `json:"-"`                   // bcrypt-хэш пароля
	EmailVerified     bool       `json:"email_verified"`      // Почта подтверждена
	AuthToken         string     `json:"-"`                   // Идентификатор текущей сессии (jti)
	TokenExpiry       *time.Time `json:"-"`                   // Срок действия сессии
	VPNKey            string     `json:"-"`                   // Приватный ключ WireGuard
	ClientIP          string     `json:"client_ip,omitempty"` // Адрес клиента в VPN-сети
	SubscriptionLevel int        `json:"subscription_level"`  // Тариф: 0 — базовый, 1 — расширенный
	IsAdmin           bool       `json:"is_admin"`            // Признак администратора
	CreatedAt         time.Time  `json:"created_at"`          // Дата создания
}

// Role возвращает роль пользователя для JWT.
func (u *User) Role() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// PendingUser регистрация, ожидающая подтверждения почты.
type PendingUser struct {
	ID                 int64
	Username           string
	Email              string
	PasswordHash       string
	VerificationCode   string
	VerificationExpiry time.Time
	CreatedAt          time.Time
}

// PasswordReset код сброса пароля, отправленный на почту.
type PasswordReset struct {
	Email  string
	Code   string
	Expiry time.Time
}

// Session результат успешного входа.
type Session struct {
	Token       string      `json:"token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *User       `json:"user"`
	Entitlement Entitlement `json:"subscription"`
}
