package paymentprovider

import "time"

// Amount денежная сумма.
type Amount struct {
	Value    string `json:"value"`    // сумма, например "200.00"
	Currency string `json:"currency"` // валюта, например "RUB"
}

// PaymentMethodData способ оплаты, выбранный пользователем.
type PaymentMethodData struct {
	Type string `json:"type"` // bank_card, sbp, sberbank
}

// Confirmation сценарий подтверждения платежа.
type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// CreatePaymentRequest запрос на создание платежа.
type CreatePaymentRequest struct {
	Amount            Amount            `json:"amount"`
	PaymentMethodData PaymentMethodData `json:"payment_method_data"`
	Confirmation      Confirmation      `json:"confirmation"`
	Capture           bool              `json:"capture"`
	Description       string            `json:"description,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"` // user_id
}

// CreatePaymentResponse ответ на создание платежа.
type CreatePaymentResponse struct {
	ID           string            `json:"id"`     // ID платежа в ЮKassa
	Status       string            `json:"status"` // pending, succeeded, canceled
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// apiError тело ошибки ЮKassa.
type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}
