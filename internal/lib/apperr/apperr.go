// Package apperr описывает типизированные ошибки бизнес-уровня.
//
// Каждая ошибка несёт Kind, по которому HTTP-слой подбирает код ответа.
// Сервисы возвращают *Error напрямую или оборачивают его через fmt.Errorf("%s: %w", op, err),
// поэтому errors.Is/errors.As продолжают работать на любой глубине.
package apperr

import (
	"errors"
)

// Kind класс ошибки.
type Kind int

const (
	// Internal — ошибка БД, транзакции или неизвестная ошибка.
	Internal Kind = iota
	// Validation — некорректные или отсутствующие поля запроса.
	Validation
	// NotFound — пользователь, платёж или устройство не найдены.
	NotFound
	// Conflict — пробный период уже использован, превышен лимит устройств и т.п.
	Conflict
	// Upstream — отказ почты, провижинера VPN или платёжного шлюза.
	Upstream
	// Unauthorized — неверные учётные данные или токен.
	Unauthorized
	// Forbidden — нет прав или нет активной подписки.
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Upstream:
		return "upstream_failure"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error ошибка с классом и сообщением, безопасным для клиента.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создаёт ошибку заданного класса.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap создаёт ошибку заданного класса поверх исходной причины.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf возвращает класс первой *Error в цепочке. Всё остальное — Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is сообщает, относится ли err к классу kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message возвращает сообщение первой *Error в цепочке или пустую строку.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
