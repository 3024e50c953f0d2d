// Package jwt реализует генерацию и парсинг JWT токенов сессий пользователей VPN.
//
// Maker определяет интерфейс создания и проверки токенов,
// MakerImpl — реализация на HS256 с секретным ключом, временем жизни и часами.
package jwt

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateToken создаёт токен сессии. Claims содержат jti и срок действия,
	// которые сохраняются в users.auth_token и users.token_expiry.
	GenerateToken(userID int64, username, role string) (string, *CustomClaims, error)
	// ParseToken проверяет подпись и срок действия, возвращает claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker.
type MakerImpl struct {
	secretKey string          // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration   // Время жизни токена.
	clock     clockwork.Clock // Источник текущего времени для iat/exp и проверки.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl.
func NewJWTMaker(secretKey string, ttl time.Duration, clock clockwork.Clock) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		clock:     clock,
	}
}
