package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SilentFail/internal/config"
	"SilentFail/internal/shared/constants"
	"SilentFail/pkg/uuidutil"

	"github.com/redis/go-redis/v9"
)

// снимаем блокировку, только если она все еще наша
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisQueue struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisQueue(cfg *config.RedisConfig, log *slog.Logger) (Queue, error) {
	client := redis.NewClient(cfg.GetRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), constants.RedisDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err, "addr", cfg.Addr)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to Redis", "addr", cfg.Addr)
	return NewRedisQueueFromClient(client, log), nil
}

func NewRedisQueueFromClient(client *redis.Client, log *slog.Logger) Queue {
	if log == nil {
		log = slog.Default()
	}
	return &redisQueue{client: client, logger: log}
}

func encodePayload(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		return data, nil
	}
}

// Push добавляет элемент в очередь
func (r *redisQueue) Push(ctx context.Context, queueName string, payload interface{}) error {
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}

	r.logger.Debug("pushing to Redis queue",
		"queue", queueName,
		"length", len(data),
	)

	if err := r.client.LPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("redis LPush failed: %w", err)
	}
	return nil
}

// Pop забирает элемент из очереди, (nil, nil) если очередь пуста
func (r *redisQueue) Pop(ctx context.Context, queueName string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = time.Second
	}

	result, err := r.client.BRPop(ctx, timeout, queueName).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("redis BRPop failed: %w", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("invalid BRPop result: expected 2 elements, got %d", len(result))
	}

	return []byte(result[1]), nil
}

func (r *redisQueue) Length(ctx context.Context, queueName string) (int64, error) {
	return r.client.LLen(ctx, queueName).Result()
}

func (r *redisQueue) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := encodePayload(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

func (r *redisQueue) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := r.client.Subscribe(ctx, channel)

	// ждем подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go sub.forward(pubsub.Channel())

	return sub, nil
}

// AcquireLock SET NX с TTL, возвращает токен для снятия блокировки
func (r *redisQueue) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuidutil.New()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis SETNX failed: %w", err)
	}

	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

func (r *redisQueue) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

func (r *redisQueue) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisQueue) Close() error {
	return r.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) forward(in <-chan *redis.Message) {
	defer close(s.out)
	for msg := range in {
		select {
		case s.out <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.pubsub.Close()
}
