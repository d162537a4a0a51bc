package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/storage"
	"SilentFail/pkg/uuidutil"
	"SilentFail/pkg/validator"
)

// ComputeUptime агрегирует простои за последние windowHours часов до now
func ComputeUptime(intervals []*models.Downtime, windowHours int, now time.Time) models.UptimeAggregate {
	windowMinutes := windowHours * 60
	result := models.UptimeAggregate{
		WindowHours:      windowHours,
		UptimePercentage: 100,
	}
	if windowMinutes <= 0 {
		return result
	}

	cutoff := now.Add(-time.Duration(windowHours) * time.Hour)
	accumulated := 0

	for _, d := range intervals {
		if d.EndedAt == nil {
			result.ActiveDowntime = true
		}

		end := now
		if d.EndedAt != nil {
			end = *d.EndedAt
		}

		if !d.StartedAt.Before(now) || !end.After(cutoff) {
			continue
		}
		result.IncidentCount++

		clampedStart := d.StartedAt
		if clampedStart.Before(cutoff) {
			clampedStart = cutoff
		}
		clampedEnd := end
		if clampedEnd.After(now) {
			clampedEnd = now
		}

		minutes := int(math.Round(clampedEnd.Sub(clampedStart).Minutes()))
		if minutes > 0 {
			accumulated += minutes
		}
	}

	result.TotalDowntimeMinutes = min(accumulated, windowMinutes)

	pct := float64(windowMinutes-result.TotalDowntimeMinutes) / float64(windowMinutes) * 100
	result.UptimePercentage = math.Max(0, math.Min(100, pct))

	return result
}

type UptimeService struct {
	db     storage.Database
	logger *slog.Logger
}

func NewUptimeService(db storage.Database, logger *slog.Logger) *UptimeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UptimeService{db: db, logger: logger}
}

// GetUptime доступность монитора владельца за окно windowHours
func (s *UptimeService) GetUptime(ctx context.Context, ownerID, monitorID string, windowHours int, now time.Time) (*models.UptimeAggregate, error) {
	if err := validator.ValidateWindowHours(windowHours); err != nil {
		return nil, validationError(err)
	}

	if !uuidutil.IsValid(monitorID) {
		return nil, ErrMonitorNotFound
	}

	monitor, err := s.db.Repos().Monitors.GetByID(ctx, monitorID)
	if err != nil {
		s.logger.Error("failed to get monitor for uptime", "error", err, "monitor_id", monitorID)
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}

	if monitor == nil || monitor.OwnerID != ownerID {
		return nil, ErrMonitorNotFound
	}

	aggregate, err := s.aggregate(ctx, s.db.Repos(), monitorID, windowHours, now)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("uptime computed",
		"monitor_id", monitorID,
		"window_hours", windowHours,
		"uptime", aggregate.UptimePercentage,
		"incidents", aggregate.IncidentCount,
	)

	return aggregate, nil
}

func (s *UptimeService) aggregate(ctx context.Context, repos storage.Repositories, monitorID string, windowHours int, now time.Time) (*models.UptimeAggregate, error) {
	from := now.Add(-time.Duration(windowHours) * time.Hour)
	intervals, err := repos.Downtimes.ListOverlapping(ctx, monitorID, from, now)
	if err != nil {
		s.logger.Error("failed to list downtimes", "error", err, "monitor_id", monitorID)
		return nil, fmt.Errorf("failed to list downtimes: %w", err)
	}

	aggregate := ComputeUptime(intervals, windowHours, now)
	return &aggregate, nil
}
