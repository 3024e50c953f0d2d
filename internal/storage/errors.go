// Package storage содержит общие ошибки слоя хранения.
// Репозиторий приводит к ним sql.ErrNoRows и нарушения уникальности,
// а сервисы переводят их в бизнес-ошибки.
package storage

import "errors"

var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists нарушено ограничение уникальности.
	ErrAlreadyExists = errors.New("record already exists")
)
