package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"SilentFail/internal/config"
)

var wg = sync.WaitGroup{}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container := NewContainer(cfg)
	container.Logger.Info("Worker service initialized", "backend", cfg.Worker.BackendURL)
	if cfg.Security.CronSecret == "" {
		container.Logger.Warn("cron secret is empty, backend in release mode will reject sweeps")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		container.TriggerHandler.Run(ctx)
	}()

	wg.Wait()
	container.Logger.Info("Worker service stopped")
}
