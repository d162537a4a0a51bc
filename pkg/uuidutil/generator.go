package uuidutil

import (
	"strings"

	"github.com/google/uuid"
)

func New() string {
	return uuid.New().String()
}

func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewKey возвращает публичный ключ для URL пинга (32 hex символа)
func NewKey() string {
	return compact(uuid.New())
}

// NewSecret возвращает секрет длиннее ключа, чтобы они никогда не совпадали
func NewSecret() string {
	return compact(uuid.New()) + compact(uuid.New())[:16]
}

func compact(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
