package storage

import (
	"context"
	"sync"
	"time"

	"SilentFail/pkg/uuidutil"
)

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryQueue очередь и pub/sub в памяти для запуска без Redis и для тестов
type MemoryQueue struct {
	mu          sync.Mutex
	lists       map[string][][]byte
	notify      chan struct{}
	subscribers map[string]map[*memorySubscription]struct{}
	locks       map[string]memoryLock
	closed      bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		lists:       make(map[string][][]byte),
		notify:      make(chan struct{}),
		subscribers: make(map[string]map[*memorySubscription]struct{}),
		locks:       make(map[string]memoryLock),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, queueName string, payload interface{}) error {
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.lists[queueName] = append(q.lists[queueName], data)
	// будим всех, кто ждет в Pop
	close(q.notify)
	q.notify = make(chan struct{})
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, queueName string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if items := q.lists[queueName]; len(items) > 0 {
			item := items[0]
			q.lists[queueName] = items[1:]
			q.mu.Unlock()
			return item, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wait:
		}
	}
}

func (q *MemoryQueue) Length(ctx context.Context, queueName string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.lists[queueName])), nil
}

func (q *MemoryQueue) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := encodePayload(message)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for sub := range q.subscribers[channel] {
		select {
		case sub.out <- data:
		default:
			// медленный подписчик теряет сообщение, как в Redis pub/sub
		}
	}
	return nil
}

func (q *MemoryQueue) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{
		queue:   q,
		channel: channel,
		out:     make(chan []byte, 64),
	}

	q.mu.Lock()
	if q.subscribers[channel] == nil {
		q.subscribers[channel] = make(map[*memorySubscription]struct{})
	}
	q.subscribers[channel][sub] = struct{}{}
	q.mu.Unlock()

	return sub, nil
}

func (q *MemoryQueue) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	if lock, ok := q.locks[key]; ok && now.Before(lock.expiresAt) {
		return "", false, nil
	}

	token := uuidutil.New()
	q.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (q *MemoryQueue) ReleaseLock(ctx context.Context, key, token string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if lock, ok := q.locks[key]; ok && lock.token == token {
		delete(q.locks, key)
	}
	return nil
}

func (q *MemoryQueue) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for _, subs := range q.subscribers {
		for sub := range subs {
			close(sub.out)
		}
	}
	q.subscribers = make(map[string]map[*memorySubscription]struct{})
	return nil
}

type memorySubscription struct {
	queue   *MemoryQueue
	channel string
	out     chan []byte
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.out
}

func (s *memorySubscription) Close() error {
	s.queue.mu.Lock()
	defer s.queue.mu.Unlock()

	if subs, ok := s.queue.subscribers[s.channel]; ok {
		if _, ok := subs[s]; ok {
			delete(subs, s)
			close(s.out)
		}
	}
	return nil
}
