package models

import "time"

// PaymentStatus статус платежа в шлюзе.
type PaymentStatus string

const (
	// PaymentPending платёж создан и ждёт оплаты.
	PaymentPending PaymentStatus = "pending"
	// PaymentSucceeded платёж проведён.
	PaymentSucceeded PaymentStatus = "succeeded"
	// PaymentCanceled платёж отменён.
	PaymentCanceled PaymentStatus = "canceled"
)

// Terminal сообщает, что после этого статуса переходов нет.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSucceeded || s == PaymentCanceled
}

// Payment запись о транзакции в платёжном шлюзе.
type Payment struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	PaymentID string            `json:"payment_id"`
	Status    PaymentStatus     `json:"status"`
	Method    string            `json:"method"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// PaymentCreated ответ на создание платежа.
type PaymentCreated struct {
	PaymentID       string        `json:"payment_id"`
	Status          PaymentStatus `json:"status"`
	ConfirmationURL string        `json:"confirmation_url"`
}
