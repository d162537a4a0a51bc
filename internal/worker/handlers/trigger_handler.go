package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	sharedmodels "SilentFail/internal/shared/models"
	client "SilentFail/internal/worker/clients"
)

const (
	ERROR_DELAY = time.Second * 5
)

type SweepTrigger interface {
	TriggerSweep(ctx context.Context) (*sharedmodels.CronCheckResponse, error)
}

// TriggerHandler периодически дергает cron эндпоинт backend
type TriggerHandler struct {
	api        SweepTrigger
	interval   time.Duration
	startDelay time.Duration
	errorDelay time.Duration
	logger     *slog.Logger
}

func NewTriggerHandler(logger *slog.Logger, api SweepTrigger, interval, startDelay time.Duration) *TriggerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &TriggerHandler{
		api:        api,
		interval:   interval,
		startDelay: startDelay,
		errorDelay: min(ERROR_DELAY, interval),
		logger:     logger.With("component", "trigger"),
	}
}

func (h *TriggerHandler) Run(ctx context.Context) {
	h.logger.Info("trigger loop started", "interval", h.interval, "start_delay", h.startDelay)

	// даем backend подняться
	if !wait(ctx, h.startDelay) {
		h.logger.Info("Stopping trigger handler due to context cancellation")
		return
	}

	for {
		delay := h.interval
		if err := h.TriggerOnce(ctx); err != nil && errors.Is(err, client.ErrBackendDown) {
			delay = h.errorDelay
		}

		if !wait(ctx, delay) {
			h.logger.Info("Stopping trigger handler due to context cancellation")
			return
		}
	}
}

// TriggerOnce один вызов sweep с логированием результата
func (h *TriggerHandler) TriggerOnce(ctx context.Context) error {
	start := time.Now()
	result, err := h.api.TriggerSweep(ctx)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrSweepInProgress):
			h.logger.Info("sweep already running elsewhere")
		case errors.Is(err, client.ErrUnauthorized):
			h.logger.Error("backend rejected cron secret", "error", err)
		case ctx.Err() != nil:
		default:
			h.logger.Error("Failed to trigger sweep", "error", err)
		}
		return err
	}

	h.logger.Info("sweep completed",
		"checked", result.Checked,
		"marked_down", result.MarkedDown,
		"duration", time.Since(start),
	)
	return nil
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
