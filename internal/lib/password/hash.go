// Package password реализует хеширование паролей и генерацию одноразовых кодов.
//
// GetHash создает bcrypt-хеш пароля для хранения в users и pending_users.
// CompareHash сверяет хеш с введённым паролем.
// NewCode генерирует цифровой код для подтверждения почты и сброса пароля.
package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch пароль не совпадает с хешем.
var ErrMismatch = errors.New("password mismatch")

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil при совпадении, ErrMismatch при несовпадении,
// иначе — ошибку разбора хэша.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// NewCode возвращает криптостойкий код из digits цифр.
func NewCode(digits int) (string, error) {
	const op = "password.NewCode"
	if digits <= 0 {
		return "", fmt.Errorf("%s: digits must be positive", op)
	}
	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
