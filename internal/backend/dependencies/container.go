package dependencies

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SilentFail/internal/backend/alerts"
	"SilentFail/internal/backend/services"
	"SilentFail/internal/backend/storage"
	"SilentFail/internal/config"
	"SilentFail/internal/shared/constants"
)

// Container контейнер зависимостей
type Container struct {
	// Config
	Config *config.Config

	// Logger
	Logger *slog.Logger

	// Clock источник текущего времени для всех операций
	Clock func() time.Time

	// Storage
	Database storage.Database
	Queue    storage.Queue

	// Alerts
	Mailer services.Mailer
	Events *services.EventPublisher

	// Services
	HeartbeatService *services.HeartbeatService
	SweepService     *services.SweepService
	UptimeService    *services.UptimeService
	MonitorService   *services.MonitorService
	OwnerService     *services.OwnerService
	AlertService     *services.AlertService
}

// NewContainer создает и инициализирует контейнер зависимостей
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	if log == nil {
		log = slog.Default()
	}

	container := &Container{
		Config: cfg,
		Logger: log,
		Clock:  func() time.Time { return time.Now().UTC() },
	}

	// Инициализация зависимостей
	if err := container.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := container.initRedis(); err != nil {
		container.Database.Close()
		return nil, err
	}

	container.initMailer()
	container.initServices()

	if err := container.bootstrapOwner(ctx); err != nil {
		_ = container.Close()
		return nil, err
	}

	log.Info("Dependency container initialized successfully",
		"database", cfg.Database.Driver,
		"redis", cfg.Redis.Enabled,
	)
	return container, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	if c.Config.Database.Driver == config.DriverMemory {
		c.Logger.Warn("using in-memory database, data is lost on restart")
		c.Database = storage.NewMemoryDatabase()
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, constants.DatabaseConnectTimeout)
	defer cancel()

	pool, err := storage.NewPostgres(connectCtx, &c.Config.Database, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	c.Database = storage.NewPostgresDatabase(pool)

	if err := storage.EnsureSchema(ctx, c.Database, c.Logger); err != nil {
		c.Database.Close()
		return fmt.Errorf("failed to prepare schema: %w", err)
	}

	return nil
}

func (c *Container) initRedis() error {
	if !c.Config.Redis.Enabled {
		c.Logger.Warn("Redis disabled, using in-process queue")
		c.Queue = storage.NewMemoryQueue()
		return nil
	}

	queue, err := storage.NewRedisQueue(&c.Config.Redis, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.Queue = queue
	return nil
}

func (c *Container) initMailer() {
	if c.Config.SMTP.Host == "" {
		c.Mailer = alerts.NewLogMailer(c.Logger.With("component", "mailer"))
		return
	}
	c.Mailer = alerts.NewSMTPMailer(c.Config.SMTP, c.Logger.With("component", "mailer"))
}

func (c *Container) initServices() {
	logger := c.Logger

	c.Events = services.NewEventPublisher(c.Queue, services.MonitorEventsChannel, logger.With("component", "events"))

	c.HeartbeatService = services.NewHeartbeatService(
		c.Database,
		c.Events,
		services.HeartbeatServiceConfig{
			GraceWindow: c.Config.Monitor.GraceWindow,
		},
		logger.With("service", "heartbeat"),
	)

	c.SweepService = services.NewSweepService(
		c.Database,
		c.Queue,
		c.Events,
		services.SweepServiceConfig{
			LockTTL:    c.Config.Sweep.LockTTL,
			AlertQueue: c.Config.Alerts.Queue,
		},
		logger.With("service", "sweep"),
	)

	c.UptimeService = services.NewUptimeService(c.Database, logger.With("service", "uptime"))

	c.MonitorService = services.NewMonitorService(
		c.Database,
		c.UptimeService,
		c.Events,
		services.MonitorServiceConfig{
			DetailPings:     c.Config.Monitor.DetailPings,
			DetailDowntimes: c.Config.Monitor.DetailDowntimes,
		},
		logger.With("service", "monitor"),
	)

	c.OwnerService = services.NewOwnerService(
		c.Database,
		c.Events,
		services.OwnerServiceConfig{
			BcryptCost: c.Config.Security.BcryptCost,
		},
		logger.With("service", "owner"),
	)

	c.AlertService = services.NewAlertService(
		c.Queue,
		c.Mailer,
		services.AlertServiceConfig{
			Queue:       c.Config.Alerts.Queue,
			Workers:     c.Config.Alerts.Workers,
			MaxRetries:  c.Config.Alerts.MaxRetries,
			RetryDelay:  c.Config.Alerts.RetryDelay,
			PollTimeout: c.Config.Alerts.PollTimeout,
			AppName:     c.Config.App.Name,
			AppURL:      c.Config.App.URL,
		},
		logger.With("service", "alerts"),
	)
}

func (c *Container) bootstrapOwner(ctx context.Context) error {
	owner, generated, err := c.OwnerService.Bootstrap(ctx,
		c.Config.Security.BootstrapEmail,
		c.Config.Security.BootstrapAPIKey,
	)
	if err != nil {
		return fmt.Errorf("failed to bootstrap owner: %w", err)
	}

	if generated != "" {
		// ключ показывается один раз, в базе лежит только хеш
		c.Logger.Warn("generated API key for bootstrap owner, store it now",
			"owner_id", owner.ID,
			"email", owner.Email,
			"api_key", generated,
		)
	}

	return nil
}

// Close закрывает все соединения
func (c *Container) Close() error {
	var errors []error

	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			errors = append(errors, err)
		}
	}

	if c.Database != nil {
		c.Database.Close()
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errors)
	}

	return nil
}
