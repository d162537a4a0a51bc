package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/storage"
)

const (
	defaultGraceWindow   = 10
	failureLogPreviewLen = 100
)

type HeartbeatServiceConfig struct {
	// GraceWindow сколько последних пингов участвует в оценке grace period
	GraceWindow int
}

type HeartbeatService struct {
	db          storage.Database
	events      *EventPublisher
	graceWindow int
	logger      *slog.Logger
}

func NewHeartbeatService(
	db storage.Database,
	events *EventPublisher,
	cfg HeartbeatServiceConfig,
	logger *slog.Logger,
) *HeartbeatService {
	window := cfg.GraceWindow
	if window <= 0 {
		window = defaultGraceWindow
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HeartbeatService{
		db:          db,
		events:      events,
		graceWindow: window,
		logger:      logger,
	}
}

// ProcessHeartbeat принимает пинг монитора и переводит его в UP
func (s *HeartbeatService) ProcessHeartbeat(ctx context.Context, key, secret string, now time.Time) (*models.HeartbeatResult, error) {
	s.logger.Debug("processing heartbeat", "key", key)

	// чужой ключ или секрет отсекаем до транзакции
	monitor, err := s.db.Repos().Monitors.GetByKey(ctx, key)
	if err != nil {
		s.logger.Error("failed to get monitor by key", "error", err)
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}
	if err := s.checkAccess(monitor, secret); err != nil {
		return nil, err
	}

	var result *models.HeartbeatResult
	var ownerID string

	err = s.db.WithinTx(ctx, func(ctx context.Context, tx storage.Repositories) error {
		monitor, err := tx.Monitors.LockByKey(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to lock monitor: %w", err)
		}
		if err := s.checkAccess(monitor, secret); err != nil {
			return err
		}
		ownerID = monitor.OwnerID

		drift := int64(0)
		if monitor.LastPing != nil {
			drift = int64(math.Floor(now.Sub(*monitor.LastPing).Seconds()))
		}

		// история без текущего пинга
		history, err := tx.Pings.ListRecent(ctx, monitor.ID, s.graceWindow)
		if err != nil {
			return fmt.Errorf("failed to load ping history: %w", err)
		}

		ping := &models.PingEvent{
			MonitorID:    monitor.ID,
			DriftSeconds: drift,
			CreatedAt:    now,
		}
		if err := tx.Pings.Create(ctx, ping); err != nil {
			return fmt.Errorf("failed to record ping: %w", err)
		}

		result = &models.HeartbeatResult{
			MonitorID:      monitor.ID,
			MonitorName:    monitor.Name,
			DriftSeconds:   drift,
			PreviousStatus: monitor.Status,
			NewStatus:      models.MonitorStatusUp,
			NewGracePeriod: monitor.GracePeriod,
			ReceivedAt:     now,
		}

		open, err := tx.Downtimes.GetOpen(ctx, monitor.ID)
		if err != nil {
			return fmt.Errorf("failed to get open downtime: %w", err)
		}
		if open != nil {
			duration := models.DowntimeMinutes(open.StartedAt, now)
			if err := tx.Downtimes.Close(ctx, open.ID, now, duration); err != nil {
				return fmt.Errorf("failed to close downtime: %w", err)
			}
			endedAt := now
			open.EndedAt = &endedAt
			open.DurationMinutes = &duration
			result.DowntimeClosed = true
			result.ClosedDowntime = open
		}

		if monitor.UseSmartGrace && len(history) >= MinGraceSamples {
			samples := make([]int64, 0, len(history)+1)
			samples = append(samples, drift)
			for _, p := range history {
				samples = append(samples, p.DriftSeconds)
			}

			estimated := EstimateGrace(samples, int64(monitor.Interval)*60)
			if estimated != monitor.GracePeriod {
				result.NewGracePeriod = estimated
				result.GraceAdjusted = true
			}
		}

		lastPing := now
		if err := tx.Monitors.UpdateState(ctx, monitor.ID, models.MonitorStatusUp, &lastPing, result.NewGracePeriod); err != nil {
			return fmt.Errorf("failed to update monitor state: %w", err)
		}

		return nil
	})
	if err != nil {
		if isAccessError(err) {
			return nil, err
		}
		s.logger.Error("failed to process heartbeat", "error", err, "monitor_id", monitor.ID)
		return nil, fmt.Errorf("failed to process heartbeat: %w", err)
	}

	s.logger.Info("heartbeat processed",
		"monitor_id", result.MonitorID,
		"drift_seconds", result.DriftSeconds,
		"previous_status", result.PreviousStatus,
		"grace_period", result.NewGracePeriod,
		"grace_adjusted", result.GraceAdjusted,
		"downtime_closed", result.DowntimeClosed,
	)

	s.events.Publish(ctx, models.MonitorEvent{
		Type:           models.EventHeartbeat,
		MonitorID:      result.MonitorID,
		OwnerID:        ownerID,
		MonitorName:    result.MonitorName,
		Status:         result.NewStatus,
		PreviousStatus: result.PreviousStatus,
		At:             now,
	})

	return result, nil
}

// ReportFailure явный сигнал о сбое задачи: монитор сразу уходит в DOWN
func (s *HeartbeatService) ReportFailure(ctx context.Context, key, secret, message string, now time.Time) (*models.FailureResult, error) {
	monitor, err := s.db.Repos().Monitors.GetByKey(ctx, key)
	if err != nil {
		s.logger.Error("failed to get monitor by key", "error", err)
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}
	if err := s.checkAccess(monitor, secret); err != nil {
		return nil, err
	}

	var result *models.FailureResult
	var ownerID string

	err = s.db.WithinTx(ctx, func(ctx context.Context, tx storage.Repositories) error {
		monitor, err := tx.Monitors.LockByKey(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to lock monitor: %w", err)
		}
		if err := s.checkAccess(monitor, secret); err != nil {
			return err
		}
		ownerID = monitor.OwnerID

		lastPing := now
		if err := tx.Monitors.UpdateState(ctx, monitor.ID, models.MonitorStatusDown, &lastPing, monitor.GracePeriod); err != nil {
			return fmt.Errorf("failed to update monitor state: %w", err)
		}

		_, created, err := tx.Downtimes.Open(ctx, monitor.ID, now)
		if err != nil {
			return fmt.Errorf("failed to open downtime: %w", err)
		}

		result = &models.FailureResult{
			MonitorID:      monitor.ID,
			MonitorName:    monitor.Name,
			PreviousStatus: monitor.Status,
			NewStatus:      models.MonitorStatusDown,
			DowntimeOpened: created,
			ReportedAt:     now,
		}
		return nil
	})
	if err != nil {
		if isAccessError(err) {
			return nil, err
		}
		s.logger.Error("failed to process failure report", "error", err, "monitor_id", monitor.ID)
		return nil, fmt.Errorf("failed to process failure report: %w", err)
	}

	s.logger.Warn("failure reported",
		"monitor_id", result.MonitorID,
		"previous_status", result.PreviousStatus,
		"downtime_opened", result.DowntimeOpened,
		"message", truncate(message, failureLogPreviewLen),
	)

	s.events.Publish(ctx, models.MonitorEvent{
		Type:           models.EventFailureReport,
		MonitorID:      result.MonitorID,
		OwnerID:        ownerID,
		MonitorName:    result.MonitorName,
		Status:         result.NewStatus,
		PreviousStatus: result.PreviousStatus,
		At:             now,
	})

	return result, nil
}

// checkAccess публичный монитор принимает любой secret, приватный только свой
func (s *HeartbeatService) checkAccess(monitor *models.Monitor, secret string) error {
	if monitor == nil {
		s.logger.Debug("heartbeat for unknown key")
		return ErrMonitorNotFound
	}

	if !monitor.IsPrivate() {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(*monitor.Secret), []byte(secret)) != 1 {
		s.logger.Warn("heartbeat rejected: invalid secret", "monitor_id", monitor.ID)
		return ErrUnauthorized
	}

	return nil
}

func isAccessError(err error) bool {
	return errors.Is(err, ErrMonitorNotFound) || errors.Is(err, ErrUnauthorized)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
