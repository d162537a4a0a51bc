package main

import (
	"log/slog"

	"SilentFail/internal/config"
	client "SilentFail/internal/worker/clients"
	handler "SilentFail/internal/worker/handlers"
	"SilentFail/pkg/logger"
)

type Container struct {
	Config         *config.Config
	Logger         *slog.Logger
	APIClient      *client.APIClient
	TriggerHandler *handler.TriggerHandler
}

func NewContainer(cfg *config.Config) *Container {
	container := &Container{Config: cfg}

	container.initLogger()
	container.initAPIClient()
	container.initHandlers()

	return container
}

func (c *Container) initLogger() {
	c.Logger = logger.Setup(logger.Config{
		Level:  c.Config.Logging.Level,
		Format: c.Config.Logging.Format,
	}).With("service", "worker")
}

func (c *Container) initAPIClient() {
	c.APIClient = client.NewAPIClient(
		c.Config.Worker.BackendURL,
		c.Config.Security.CronSecret,
		c.Config.Worker.Timeout,
	)
}

func (c *Container) initHandlers() {
	c.TriggerHandler = handler.NewTriggerHandler(
		c.Logger,
		c.APIClient,
		c.Config.Worker.Interval,
		c.Config.Worker.StartDelay,
	)
}
