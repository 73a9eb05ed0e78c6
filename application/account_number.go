package application

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"
)

// Формат номера счета: ACC-YYYYMMDD-XXXXXX
var accountNumberPattern = regexp.MustCompile(`^ACC-\d{8}-\d{6}$`)

// GenerateAccountNumber выдает кандидата номера счета. Уникальность
// гарантирует не генератор, а уникальный индекс хранилища: при коллизии
// создатель счета повторяет попытку с новым кандидатом.
func GenerateAccountNumber(now time.Time) string {
	return fmt.Sprintf("ACC-%s-%06d", now.UTC().Format("20060102"), rand.Intn(1000000))
}

// ValidAccountNumber проверяет формат номера счета
func ValidAccountNumber(number string) bool {
	return accountNumberPattern.MatchString(number)
}
