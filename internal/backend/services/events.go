package services

import (
	"context"
	"log/slog"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/storage"
	"SilentFail/internal/shared/constants"
)

const MonitorEventsChannel = "monitor_events"

// EventPublisher рассылает изменения статусов мониторов через pub/sub.
// Ошибки публикации только логируются.
type EventPublisher struct {
	queue   storage.Queue
	channel string
	logger  *slog.Logger
}

func NewEventPublisher(queue storage.Queue, channel string, logger *slog.Logger) *EventPublisher {
	if channel == "" {
		channel = MonitorEventsChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{queue: queue, channel: channel, logger: logger}
}

func (p *EventPublisher) Publish(ctx context.Context, event models.MonitorEvent) {
	if p == nil || p.queue == nil {
		return
	}

	// запрос мог уже завершиться, событие все равно отправляем
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.EventPublishTimeout)
	defer cancel()

	if err := p.queue.Publish(ctx, p.channel, event); err != nil {
		p.logger.Warn("failed to publish monitor event",
			"error", err,
			"type", event.Type,
			"monitor_id", event.MonitorID,
		)
	}
}

func (p *EventPublisher) Subscribe(ctx context.Context) (storage.Subscription, error) {
	return p.queue.Subscribe(ctx, p.channel)
}
