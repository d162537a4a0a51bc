package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/storage"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db        *storage.MemoryDatabase
	queue     *storage.MemoryQueue
	events    *EventPublisher
	heartbeat *HeartbeatService
	sweep     *SweepService
	uptime    *UptimeService
	monitors  *MonitorService
	owners    *OwnerService
	owner     *models.Owner
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storage.NewMemoryDatabase()
	queue := storage.NewMemoryQueue()
	t.Cleanup(func() { _ = queue.Close() })

	log := discardLogger()
	events := NewEventPublisher(queue, "", log)
	uptime := NewUptimeService(db, log)

	owner := &models.Owner{Email: "ops@example.com"}
	require.NoError(t, db.Repos().Owners.Create(context.Background(), owner))

	return &fixture{
		db:        db,
		queue:     queue,
		events:    events,
		heartbeat: NewHeartbeatService(db, events, HeartbeatServiceConfig{GraceWindow: 10}, log),
		sweep:     NewSweepService(db, queue, events, SweepServiceConfig{LockTTL: time.Minute}, log),
		uptime:    uptime,
		monitors:  NewMonitorService(db, uptime, events, MonitorServiceConfig{}, log),
		owners:    NewOwnerService(db, events, OwnerServiceConfig{BcryptCost: bcrypt.MinCost}, log),
		owner:     owner,
	}
}

func (f *fixture) createMonitor(t *testing.T, req models.CreateMonitorRequest) *models.Monitor {
	t.Helper()
	if req.Name == "" {
		req.Name = "nightly-backup"
	}
	if req.Interval == 0 {
		req.Interval = 5
	}
	monitor, err := f.monitors.CreateMonitor(context.Background(), f.owner.ID, &req, t0)
	require.NoError(t, err)
	return monitor
}

func (f *fixture) getMonitor(t *testing.T, id string) *models.Monitor {
	t.Helper()
	monitor, err := f.db.Repos().Monitors.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, monitor)
	return monitor
}

func (f *fixture) openDowntime(t *testing.T, monitorID string) *models.Downtime {
	t.Helper()
	d, err := f.db.Repos().Downtimes.GetOpen(context.Background(), monitorID)
	require.NoError(t, err)
	return d
}

func intPtr(v int) *int { return &v }
