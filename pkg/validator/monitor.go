package validator

import (
	"fmt"
	"strings"
)

// диапазоны полей запроса заданы тегами binding в models
const (
	MinWindowHours = 1
	MaxWindowHours = 720
	MaxFailureBody = 64 * 1024
)

// ValidateMonitorName имя не может состоять из одних пробелов
func ValidateMonitorName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func ValidateWindowHours(hours int) error {
	if hours < MinWindowHours || hours > MaxWindowHours {
		return fmt.Errorf("window must be between %d and %d hours, got %d", MinWindowHours, MaxWindowHours, hours)
	}
	return nil
}
