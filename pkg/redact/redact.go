// redact маскирует чувствительные данные перед записью в лог.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Email маскирует e-mail: первые две руны локальной части + "***", домен как есть.
// Строка без ровно одного '@' заменяется на "***".
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := []rune(s[:i]), s[i+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}

	return string(local[:2]) + "***@" + domain
}

// Token возвращает короткий отпечаток токена вида "tok:1a2b3c4d".
// По отпечатку можно сопоставить записи лога, не раскрывая сам токен.
func Token(s string) string {
	if s == "" {
		return "tok:-"
	}

	sum := sha256.Sum256([]byte(s))
	return "tok:" + hex.EncodeToString(sum[:4])
}
