package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/storage"
)

const (
	DefaultSweepLockKey = "sweep:lock"
	DefaultAlertQueue   = "alert_jobs"
)

type SweepServiceConfig struct {
	LockKey string
	LockTTL time.Duration
	// AlertQueue очередь писем о падении
	AlertQueue string
}

type SweepService struct {
	db     storage.Database
	queue  storage.Queue
	events *EventPublisher
	cfg    SweepServiceConfig
	logger *slog.Logger
}

func NewSweepService(
	db storage.Database,
	queue storage.Queue,
	events *EventPublisher,
	cfg SweepServiceConfig,
	logger *slog.Logger,
) *SweepService {
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultSweepLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 55 * time.Second
	}
	if cfg.AlertQueue == "" {
		cfg.AlertQueue = DefaultAlertQueue
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SweepService{
		db:     db,
		queue:  queue,
		events: events,
		cfg:    cfg,
		logger: logger,
	}
}

type overdueMonitor struct {
	candidate *models.SweepCandidate
	deadline  time.Time
}

// Sweep находит UP мониторы с просроченным дедлайном и переводит их в DOWN
func (s *SweepService) Sweep(ctx context.Context, now time.Time) (*models.SweepResult, error) {
	if s.queue != nil {
		token, ok, err := s.queue.AcquireLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		switch {
		case err != nil:
			// без блокировки проход все равно безопасен за счет условного MarkDown
			s.logger.Warn("failed to acquire sweep lock, sweeping anyway", "error", err)
		case !ok:
			s.logger.Info("sweep skipped: another sweep holds the lock")
			return nil, ErrSweepInProgress
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := s.queue.ReleaseLock(releaseCtx, s.cfg.LockKey, token); err != nil {
					s.logger.Warn("failed to release sweep lock", "error", err)
				}
			}()
		}
	}

	candidates, err := s.db.Repos().Monitors.ListUpWithOwnerEmail(ctx)
	if err != nil {
		s.logger.Error("failed to load up monitors", "error", err)
		return nil, fmt.Errorf("failed to load up monitors: %w", err)
	}

	result := &models.SweepResult{
		Checked: len(candidates),
		SweptAt: now,
	}

	overdue := make(map[string]overdueMonitor)
	transitions := make([]models.StatusTransition, 0)
	for _, c := range candidates {
		if c.LastPing == nil {
			continue
		}

		deadline := models.Deadline(*c.LastPing, c.Interval, c.GracePeriod)
		if !now.After(deadline) {
			continue
		}

		overdue[c.ID] = overdueMonitor{candidate: c, deadline: deadline}
		transitions = append(transitions, models.StatusTransition{
			MonitorID:        c.ID,
			ExpectedLastPing: *c.LastPing,
		})
	}

	var marked []string
	if len(transitions) > 0 {
		err = s.db.WithinTx(ctx, func(ctx context.Context, tx storage.Repositories) error {
			ids, err := tx.Monitors.MarkDown(ctx, transitions)
			if err != nil {
				return err
			}

			for _, id := range ids {
				// простой начинается с дедлайна, а не с момента обнаружения
				if _, created, err := tx.Downtimes.Open(ctx, id, overdue[id].deadline); err != nil {
					return err
				} else if !created {
					s.logger.Debug("downtime already open", "monitor_id", id)
				}
			}

			marked = ids
			return nil
		})
		if err != nil {
			s.logger.Error("failed to mark monitors down", "error", err, "overdue", len(transitions))
			return nil, fmt.Errorf("failed to mark monitors down: %w", err)
		}
	}
	result.MarkedDown = len(marked)

	for _, id := range marked {
		m := overdue[id]
		if s.enqueueAlert(ctx, m, now) {
			result.AlertsSent++
		}

		s.events.Publish(ctx, models.MonitorEvent{
			Type:           models.EventMarkedDown,
			MonitorID:      id,
			OwnerID:        m.candidate.OwnerID,
			MonitorName:    m.candidate.Name,
			Status:         models.MonitorStatusDown,
			PreviousStatus: models.MonitorStatusUp,
			At:             now,
		})
	}

	s.logger.Info("sweep completed",
		"checked", result.Checked,
		"marked_down", result.MarkedDown,
		"alerts_queued", result.AlertsSent,
	)

	return result, nil
}

func (s *SweepService) enqueueAlert(ctx context.Context, m overdueMonitor, now time.Time) bool {
	if s.queue == nil {
		s.logger.Warn("alert queue unavailable", "monitor_id", m.candidate.ID)
		return false
	}

	job := models.AlertJob{
		MonitorID:   m.candidate.ID,
		MonitorName: m.candidate.Name,
		OwnerEmail:  m.candidate.OwnerEmail,
		LastPing:    *m.candidate.LastPing,
		DownSince:   m.deadline,
		QueuedAt:    now,
	}

	if err := s.queue.Push(ctx, s.cfg.AlertQueue, job); err != nil {
		s.logger.Error("failed to queue alert",
			"error", err,
			"monitor_id", job.MonitorID,
			"owner_email", job.OwnerEmail,
		)
		return false
	}

	s.logger.Debug("alert queued", "monitor_id", job.MonitorID)
	return true
}

// Run запускает проход по таймеру до отмены контекста
func (s *SweepService) Run(ctx context.Context, interval time.Duration, clock func() time.Time) {
	if interval <= 0 {
		interval = time.Minute
	}
	if clock == nil {
		clock = time.Now
	}

	s.logger.Info("embedded sweep scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("embedded sweep scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, clock()); err != nil && ctx.Err() == nil {
				s.logger.Warn("scheduled sweep failed", "error", err)
			}
		}
	}
}
