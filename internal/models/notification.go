package models

import "time"

// Mail письмо, поставленное в очередь на отправку.
type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notification уведомление о скором окончании периода подписки.
type Notification struct {
	PeriodID int64      `json:"period_id"`
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Kind     PeriodKind `json:"kind"`
	EndDate  time.Time  `json:"end_date"`
}
