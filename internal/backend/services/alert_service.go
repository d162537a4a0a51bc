package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SilentFail/internal/backend/alerts"
	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/storage"
)

const alertErrorDelay = 2 * time.Second

// Mailer отправка HTML письма
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type AlertServiceConfig struct {
	Queue       string
	Workers     int
	MaxRetries  int
	RetryDelay  time.Duration
	PollTimeout time.Duration
	AppName     string
	AppURL      string
}

// AlertService разбирает очередь писем о падении мониторов
type AlertService struct {
	queue  storage.Queue
	mailer Mailer
	cfg    AlertServiceConfig
	logger *slog.Logger
}

func NewAlertService(queue storage.Queue, mailer Mailer, cfg AlertServiceConfig, logger *slog.Logger) *AlertService {
	if cfg.Queue == "" {
		cfg.Queue = DefaultAlertQueue
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &AlertService{
		queue:  queue,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
	}
}

// Run запускает воркеров и ждет их остановки после отмены контекста
func (s *AlertService) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.work(ctx, worker)
		}(i)
	}

	s.logger.Info("alert workers started", "workers", s.cfg.Workers, "queue", s.cfg.Queue)
	wg.Wait()
	s.logger.Info("alert workers stopped")
}

// Backlog сколько писем ждет отправки
func (s *AlertService) Backlog(ctx context.Context) (int64, error) {
	n, err := s.queue.Length(ctx, s.cfg.Queue)
	if err != nil {
		return 0, fmt.Errorf("failed to get alert queue length: %w", err)
	}
	return n, nil
}

func (s *AlertService) work(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := s.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("alert worker error", "error", err, "worker", worker)
			if !sleepCtx(ctx, alertErrorDelay) {
				return
			}
		}
	}
}

// ProcessNext обрабатывает одну задачу. false если очередь пуста.
func (s *AlertService) ProcessNext(ctx context.Context) (bool, error) {
	data, err := s.queue.Pop(ctx, s.cfg.Queue, s.cfg.PollTimeout)
	if err != nil {
		return false, fmt.Errorf("failed to pop alert job: %w", err)
	}
	if data == nil {
		return false, nil
	}

	var job models.AlertJob
	if err := json.Unmarshal(data, &job); err != nil {
		s.logger.Error("dropping malformed alert job", "error", err, "payload_length", len(data))
		return true, nil
	}

	if err := s.deliver(ctx, &job); err != nil {
		s.retry(ctx, &job, err)
	}

	return true, nil
}

func (s *AlertService) deliver(ctx context.Context, job *models.AlertJob) error {
	email := alerts.AlertEmail{
		AppName:      s.cfg.AppName,
		MonitorName:  job.MonitorName,
		LastPing:     job.LastPing,
		DownSince:    job.DownSince,
		DashboardURL: alerts.MonitorURL(s.cfg.AppURL, job.MonitorID),
	}

	body, err := email.Render()
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, job.OwnerEmail, email.Subject(), body); err != nil {
		return err
	}

	s.logger.Info("alert delivered",
		"monitor_id", job.MonitorID,
		"owner_email", job.OwnerEmail,
		"attempt", job.Attempt+1,
	)
	return nil
}

func (s *AlertService) retry(ctx context.Context, job *models.AlertJob, cause error) {
	if job.Attempt >= s.cfg.MaxRetries || errors.Is(cause, alerts.ErrSMTPNotConfigured) {
		s.logger.Error("alert delivery failed, giving up",
			"error", cause,
			"monitor_id", job.MonitorID,
			"attempts", job.Attempt+1,
		)
		return
	}

	job.Attempt++
	s.logger.Warn("alert delivery failed, retrying",
		"error", cause,
		"monitor_id", job.MonitorID,
		"attempt", job.Attempt,
		"retry_in", s.cfg.RetryDelay,
	)

	// при остановке задача возвращается в очередь без ожидания
	sleepCtx(ctx, s.cfg.RetryDelay)

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.queue.Push(pushCtx, s.cfg.Queue, job); err != nil {
		s.logger.Error("failed to requeue alert", "error", err, "monitor_id", job.MonitorID)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
