package storage

import (
	"context"
	"errors"
	"time"

	"SilentFail/internal/backend/models"
)

var ErrNotFound = errors.New("record not found")

// MonitorStore интерфейс для работы с мониторами
type MonitorStore interface {
	Create(ctx context.Context, monitor *models.Monitor) error
	GetByID(ctx context.Context, id string) (*models.Monitor, error)
	GetByKey(ctx context.Context, key string) (*models.Monitor, error)
	// LockByKey внутри транзакции блокирует строку монитора до коммита
	LockByKey(ctx context.Context, key string) (*models.Monitor, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Monitor, error)
	UpdateSettings(ctx context.Context, monitor *models.Monitor) error
	UpdateState(ctx context.Context, id string, status models.MonitorStatus, lastPing *time.Time, gracePeriod int) error
	ListUpWithOwnerEmail(ctx context.Context) ([]*models.SweepCandidate, error)
	// MarkDown переводит UP -> DOWN только те мониторы, чей last_ping не изменился
	MarkDown(ctx context.Context, transitions []models.StatusTransition) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// PingStore интерфейс для истории пингов
type PingStore interface {
	Create(ctx context.Context, ping *models.PingEvent) error
	ListRecent(ctx context.Context, monitorID string, limit int) ([]*models.PingEvent, error)
}

// DowntimeStore интерфейс для интервалов простоя
type DowntimeStore interface {
	GetOpen(ctx context.Context, monitorID string) (*models.Downtime, error)
	// Open создает открытый простой, если его еще нет. false если уже был открыт.
	Open(ctx context.Context, monitorID string, startedAt time.Time) (*models.Downtime, bool, error)
	Close(ctx context.Context, id string, endedAt time.Time, durationMinutes int) error
	ListRecent(ctx context.Context, monitorID string, limit int) ([]*models.Downtime, error)
	ListOverlapping(ctx context.Context, monitorID string, from, to time.Time) ([]*models.Downtime, error)
}

// OwnerStore интерфейс для владельцев мониторов
type OwnerStore interface {
	Create(ctx context.Context, owner *models.Owner) error
	GetByID(ctx context.Context, id string) (*models.Owner, error)
	GetByEmail(ctx context.Context, email string) (*models.Owner, error)
	GetByAPIKeyPrefix(ctx context.Context, prefix string) (*models.Owner, error)
	UpdateAPIKey(ctx context.Context, id, prefix, hash string) error
	// Delete удаляет владельца вместе с его мониторами, пингами и простоями
	Delete(ctx context.Context, id string) error
}

type Repositories struct {
	Monitors  MonitorStore
	Pings     PingStore
	Downtimes DowntimeStore
	Owners    OwnerStore
}

// Database хранилище с транзакциями
type Database interface {
	Repos() Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
	Close()
}

// Queue интерфейс для работы с очередью и pub/sub
type Queue interface {
	Push(ctx context.Context, queueName string, payload interface{}) error
	Pop(ctx context.Context, queueName string, timeout time.Duration) ([]byte, error)
	Length(ctx context.Context, queueName string) (int64, error)
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	Ping(ctx context.Context) error
	Close() error
}

type Subscription interface {
	Messages() <-chan []byte
	Close() error
}
