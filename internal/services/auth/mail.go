package auth

import (
	"fmt"
	"time"
)

func verificationMail(username, code string, ttl time.Duration) (subject, body string) {
	subject = "Подтверждение регистрации"
	body = fmt.Sprintf("Здравствуйте, %s!\n\nВаш код подтверждения: %s\nКод действует %d минут.\n",
		username, code, int(ttl.Minutes()))
	return subject, body
}

func resetMail(username, code string, ttl time.Duration) (subject, body string) {
	subject = "Сброс пароля"
	body = fmt.Sprintf("Здравствуйте, %s!\n\nКод для сброса пароля: %s\nКод действует %d минут.\n"+
		"Если вы не запрашивали сброс, просто проигнорируйте это письмо.\n",
		username, code, int(ttl.Minutes()))
	return subject, body
}
