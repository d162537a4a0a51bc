package client

import (
	"errors"
)

var ErrUnauthorized = errors.New("cron secret rejected by backend")
var ErrSweepInProgress = errors.New("sweep already in progress")
var ErrBackendDown = errors.New("backend unavailable")
