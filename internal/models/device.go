package models

import "time"

// Device устройство, привязанное к пользователю по токену.
type Device struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"device_token"`
	Model     string    `json:"device_model,omitempty"`
	OS        string    `json:"device_os,omitempty"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}
