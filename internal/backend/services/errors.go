package services

import (
	"errors"
	"fmt"
)

var (
	ErrMonitorNotFound = errors.New("monitor not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrValidation      = errors.New("validation failed")
	ErrSweepInProgress = errors.New("sweep already in progress")
)

func validationError(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
