// Package models содержит доменные структуры, описывающие периоды подписки
// и вычисленное право пользователя на доступ к VPN.
package models

import "time"

// PeriodKind вид периода подписки.
type PeriodKind string

const (
	// KindTrial пробный период, выдаётся один раз за жизнь пользователя.
	KindTrial PeriodKind = "trial"
	// KindPaid оплаченный период.
	KindPaid PeriodKind = "paid"
)

// Valid проверяет, что вид периода известен.
func (k PeriodKind) Valid() bool {
	return k == KindTrial || k == KindPaid
}

// PeriodStatus статус строки журнала подписок.
type PeriodStatus string

const (
	// StatusActive период действует (подсказка, решает сравнение дат).
	StatusActive PeriodStatus = "active"
	// StatusExpired период истёк.
	StatusExpired PeriodStatus = "expired"
	// StatusCanceled период заменён продлением до своего окончания.
	StatusCanceled PeriodStatus = "canceled"
)

// Period одна выдача пробного или оплаченного доступа.
type Period struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Kind      PeriodKind   `json:"kind"`
	Status    PeriodStatus `json:"status"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Entitlement право пользователя на использование VPN в конкретный момент.
type Entitlement struct {
	IsTrial       bool       `json:"is_trial"`
	IsPaid        bool       `json:"is_paid"`
	CanUse        bool       `json:"can_use"`
	ActiveEndDate *time.Time `json:"active_end_date,omitempty"`
	TrialEndDate  *time.Time `json:"trial_end_date,omitempty"`
	PaidEndDate   *time.Time `json:"paid_end_date,omitempty"`
}

// SubscriptionStatus ответ эндпоинта статуса подписки.
type SubscriptionStatus struct {
	Entitlement
	DeviceCount int      `json:"device_count"`
	MaxDevices  int      `json:"max_devices"`
	Periods     []Period `json:"periods"`
}

// ExpiringPeriod период, о скором окончании которого нужно уведомить.
type ExpiringPeriod struct {
	PeriodID int64      `json:"period_id"`
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Kind     PeriodKind `json:"kind"`
	EndDate  time.Time  `json:"end_date"`
}
