package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/storage"
	"SilentFail/pkg/uuidutil"
	"SilentFail/pkg/validator"
)

const detailUptimeWindowHours = 24

type MonitorServiceConfig struct {
	DetailPings     int
	DetailDowntimes int
}

// MonitorService управление мониторами владельца
type MonitorService struct {
	db     storage.Database
	uptime *UptimeService
	events *EventPublisher
	cfg    MonitorServiceConfig
	logger *slog.Logger
}

func NewMonitorService(
	db storage.Database,
	uptime *UptimeService,
	events *EventPublisher,
	cfg MonitorServiceConfig,
	logger *slog.Logger,
) *MonitorService {
	if cfg.DetailPings <= 0 {
		cfg.DetailPings = 100
	}
	if cfg.DetailDowntimes <= 0 {
		cfg.DetailDowntimes = 50
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &MonitorService{
		db:     db,
		uptime: uptime,
		events: events,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *MonitorService) CreateMonitor(ctx context.Context, ownerID string, req *models.CreateMonitorRequest, now time.Time) (*models.Monitor, error) {
	if err := validateCreate(req); err != nil {
		s.logger.Warn("create monitor rejected", "owner_id", ownerID, "reason", err)
		return nil, validationError(err)
	}
	name := strings.TrimSpace(req.Name)

	grace := DefaultGracePeriod
	if req.GracePeriod != nil {
		grace = *req.GracePeriod
	}

	monitor := &models.Monitor{
		OwnerID:       ownerID,
		Name:          name,
		Key:           uuidutil.NewKey(),
		Interval:      req.Interval,
		GracePeriod:   grace,
		UseSmartGrace: req.UseSmartGrace,
		Status:        models.MonitorStatusPending,
		CreatedAt:     now,
	}
	if req.PrivateMonitor {
		secret := uuidutil.NewSecret()
		monitor.Secret = &secret
	}

	if err := s.db.Repos().Monitors.Create(ctx, monitor); err != nil {
		s.logger.Error("failed to create monitor", "error", err, "owner_id", ownerID)
		return nil, fmt.Errorf("failed to create monitor: %w", err)
	}

	s.logger.Info("monitor created",
		"monitor_id", monitor.ID,
		"owner_id", ownerID,
		"interval", monitor.Interval,
		"grace_period", monitor.GracePeriod,
		"private", monitor.IsPrivate(),
	)

	return monitor, nil
}

func (s *MonitorService) ListMonitors(ctx context.Context, ownerID string) ([]*models.Monitor, error) {
	monitors, err := s.db.Repos().Monitors.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("failed to list monitors", "error", err, "owner_id", ownerID)
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	if monitors == nil {
		monitors = []*models.Monitor{}
	}
	return monitors, nil
}

// GetMonitor монитор владельца, чужие мониторы не видны
func (s *MonitorService) GetMonitor(ctx context.Context, ownerID, id string) (*models.Monitor, error) {
	if !uuidutil.IsValid(id) {
		return nil, ErrMonitorNotFound
	}

	monitor, err := s.db.Repos().Monitors.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get monitor", "error", err, "monitor_id", id)
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}

	if monitor == nil || monitor.OwnerID != ownerID {
		return nil, ErrMonitorNotFound
	}

	return monitor, nil
}

// GetMonitorDetail монитор с последними пингами, простоями и uptime за сутки
func (s *MonitorService) GetMonitorDetail(ctx context.Context, ownerID, id string, now time.Time) (*models.MonitorDetail, error) {
	monitor, err := s.GetMonitor(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	repos := s.db.Repos()

	pings, err := repos.Pings.ListRecent(ctx, monitor.ID, s.cfg.DetailPings)
	if err != nil {
		return nil, fmt.Errorf("failed to list pings: %w", err)
	}

	downtimes, err := repos.Downtimes.ListRecent(ctx, monitor.ID, s.cfg.DetailDowntimes)
	if err != nil {
		return nil, fmt.Errorf("failed to list downtimes: %w", err)
	}

	uptime, err := s.uptime.aggregate(ctx, repos, monitor.ID, detailUptimeWindowHours, now)
	if err != nil {
		return nil, err
	}

	if pings == nil {
		pings = []*models.PingEvent{}
	}
	if downtimes == nil {
		downtimes = []*models.Downtime{}
	}

	return &models.MonitorDetail{
		Monitor:   monitor,
		Pings:     pings,
		Downtimes: downtimes,
		Uptime:    *uptime,
	}, nil
}

// UpdateMonitor меняет настройки. Статус и история не трогаются.
func (s *MonitorService) UpdateMonitor(ctx context.Context, ownerID, id string, req *models.UpdateMonitorRequest) (*models.Monitor, error) {
	if err := validateUpdate(req); err != nil {
		return nil, validationError(err)
	}

	monitor, err := s.GetMonitor(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		monitor.Name = strings.TrimSpace(*req.Name)
	}

	if req.Interval != nil {
		monitor.Interval = *req.Interval
	}

	if req.GracePeriod != nil {
		monitor.GracePeriod = *req.GracePeriod
	}

	if req.UseSmartGrace != nil {
		monitor.UseSmartGrace = *req.UseSmartGrace
	}

	if req.PrivateMonitor != nil {
		switch {
		case *req.PrivateMonitor && !monitor.IsPrivate():
			secret := uuidutil.NewSecret()
			monitor.Secret = &secret
		case !*req.PrivateMonitor:
			monitor.Secret = nil
		}
	}

	if err := s.db.Repos().Monitors.UpdateSettings(ctx, monitor); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrMonitorNotFound
		}
		s.logger.Error("failed to update monitor", "error", err, "monitor_id", id)
		return nil, fmt.Errorf("failed to update monitor: %w", err)
	}

	s.logger.Info("monitor updated", "monitor_id", monitor.ID, "owner_id", ownerID)
	return monitor, nil
}

// RotateKey выдает новый ключ пинга, старый URL перестает работать
func (s *MonitorService) RotateKey(ctx context.Context, ownerID, id string) (*models.Monitor, error) {
	monitor, err := s.GetMonitor(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	monitor.Key = uuidutil.NewKey()
	if err := s.db.Repos().Monitors.UpdateSettings(ctx, monitor); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrMonitorNotFound
		}
		return nil, fmt.Errorf("failed to rotate monitor key: %w", err)
	}

	s.logger.Info("monitor key rotated", "monitor_id", monitor.ID)
	return monitor, nil
}

// DeleteMonitor удаляет монитор вместе с пингами и простоями
func (s *MonitorService) DeleteMonitor(ctx context.Context, ownerID, id string, now time.Time) error {
	monitor, err := s.GetMonitor(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.db.Repos().Monitors.Delete(ctx, monitor.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrMonitorNotFound
		}
		s.logger.Error("failed to delete monitor", "error", err, "monitor_id", id)
		return fmt.Errorf("failed to delete monitor: %w", err)
	}

	s.logger.Info("monitor deleted", "monitor_id", monitor.ID, "owner_id", ownerID)

	s.events.Publish(ctx, models.MonitorEvent{
		Type:        models.EventMonitorDelete,
		MonitorID:   monitor.ID,
		OwnerID:     ownerID,
		MonitorName: monitor.Name,
		Status:      monitor.Status,
		At:          now,
	})

	return nil
}

// validateCreate диапазоны из тегов binding, пустое после trim имя отдельно
func validateCreate(req *models.CreateMonitorRequest) error {
	if err := validator.ValidateStruct(req); err != nil {
		return err
	}
	return validator.ValidateMonitorName(req.Name)
}

func validateUpdate(req *models.UpdateMonitorRequest) error {
	if err := validator.ValidateStruct(req); err != nil {
		return err
	}
	if req.Name != nil {
		return validator.ValidateMonitorName(*req.Name)
	}
	return nil
}
