package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/pkg/uuidutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMonitor(t *testing.T, db Database) (*models.Owner, *models.Monitor) {
	t.Helper()
	ctx := context.Background()
	repos := db.Repos()

	owner := &models.Owner{Email: "owner-" + uuidutil.New() + "@example.com"}
	require.NoError(t, repos.Owners.Create(ctx, owner))

	monitor := &models.Monitor{
		OwnerID:     owner.ID,
		Name:        "nightly-backup",
		Key:         "key-" + owner.ID,
		Interval:    5,
		GracePeriod: 2,
		Status:      models.MonitorStatusPending,
	}
	require.NoError(t, repos.Monitors.Create(ctx, monitor))
	return owner, monitor
}

func TestMemoryDatabase_TxRollbackOnError(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	_, monitor := seedMonitor(t, db)

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(ctx context.Context, tx Repositories) error {
		require.NoError(t, tx.Pings.Create(ctx, &models.PingEvent{MonitorID: monitor.ID}))
		now := time.Now()
		require.NoError(t, tx.Monitors.UpdateState(ctx, monitor.ID, models.MonitorStatusUp, &now, 2))
		return boom
	})
	require.ErrorIs(t, err, boom)

	pings, err := db.Repos().Pings.ListRecent(ctx, monitor.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pings)

	got, err := db.Repos().Monitors.GetByID(ctx, monitor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MonitorStatusPending, got.Status)
	assert.Nil(t, got.LastPing)
}

func TestMemoryDowntimeStore_SingleOpenDowntime(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	_, monitor := seedMonitor(t, db)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first, created, err := db.Repos().Downtimes.Open(ctx, monitor.ID, start)
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, first)

	_, created, err = db.Repos().Downtimes.Open(ctx, monitor.ID, start.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, db.Repos().Downtimes.Close(ctx, first.ID, start.Add(90*time.Second), 1))
	err = db.Repos().Downtimes.Close(ctx, first.ID, start.Add(2*time.Minute), 2)
	assert.ErrorIs(t, err, ErrNotFound)

	open, err := db.Repos().Downtimes.GetOpen(ctx, monitor.ID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestMemoryDowntimeStore_ListOverlapping(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	_, monitor := seedMonitor(t, db)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	repos := db.Repos()

	// закрыт до окна
	d1, _, _ := repos.Downtimes.Open(ctx, monitor.ID, now.Add(-30*time.Hour))
	require.NoError(t, repos.Downtimes.Close(ctx, d1.ID, now.Add(-26*time.Hour), 240))
	// пересекает начало окна
	d2, _, _ := repos.Downtimes.Open(ctx, monitor.ID, now.Add(-25*time.Hour))
	require.NoError(t, repos.Downtimes.Close(ctx, d2.ID, now.Add(-23*time.Hour), 120))
	// открыт
	_, _, err := repos.Downtimes.Open(ctx, monitor.ID, now.Add(-time.Hour))
	require.NoError(t, err)

	got, err := repos.Downtimes.ListOverlapping(ctx, monitor.ID, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d2.ID, got[0].ID)
	assert.Nil(t, got[1].EndedAt)
}

func TestMemoryMonitorStore_MarkDownComparesLastPing(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	_, stale := seedMonitor(t, db)
	_, fresh := seedMonitor(t, db)
	repos := db.Repos()

	readAt := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Monitors.UpdateState(ctx, stale.ID, models.MonitorStatusUp, &readAt, 2))
	require.NoError(t, repos.Monitors.UpdateState(ctx, fresh.ID, models.MonitorStatusUp, &readAt, 2))

	// fresh успел получить пинг после чтения
	pingedAt := readAt.Add(10 * time.Minute)
	require.NoError(t, repos.Monitors.UpdateState(ctx, fresh.ID, models.MonitorStatusUp, &pingedAt, 2))

	marked, err := repos.Monitors.MarkDown(ctx, []models.StatusTransition{
		{MonitorID: stale.ID, ExpectedLastPing: readAt},
		{MonitorID: fresh.ID, ExpectedLastPing: readAt},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, marked)

	marked, err = repos.Monitors.MarkDown(ctx, []models.StatusTransition{{MonitorID: stale.ID, ExpectedLastPing: readAt}})
	require.NoError(t, err)
	assert.Empty(t, marked)
}

func TestMemoryMonitorStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	_, monitor := seedMonitor(t, db)
	_, other := seedMonitor(t, db)
	repos := db.Repos()

	require.NoError(t, repos.Pings.Create(ctx, &models.PingEvent{MonitorID: monitor.ID}))
	require.NoError(t, repos.Pings.Create(ctx, &models.PingEvent{MonitorID: other.ID}))
	_, _, err := repos.Downtimes.Open(ctx, monitor.ID, time.Now())
	require.NoError(t, err)

	require.NoError(t, repos.Monitors.Delete(ctx, monitor.ID))
	assert.ErrorIs(t, repos.Monitors.Delete(ctx, monitor.ID), ErrNotFound)

	pings, err := repos.Pings.ListRecent(ctx, monitor.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pings)

	otherPings, err := repos.Pings.ListRecent(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Len(t, otherPings, 1)

	downtimes, err := repos.Downtimes.ListRecent(ctx, monitor.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, downtimes)
}

func TestMemoryPingStore_ListRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	_, monitor := seedMonitor(t, db)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Repos().Pings.Create(ctx, &models.PingEvent{
			MonitorID:    monitor.ID,
			DriftSeconds: int64(i),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	pings, err := db.Repos().Pings.ListRecent(ctx, monitor.ID, 3)
	require.NoError(t, err)
	require.Len(t, pings, 3)
	assert.Equal(t, []int64{4, 3, 2}, []int64{pings[0].DriftSeconds, pings[1].DriftSeconds, pings[2].DriftSeconds})
}

func TestMemoryPingStore_ListRecentOrdersByTimeNotInsertion(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	_, monitor := seedMonitor(t, db)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// самый новый пинг вставлен первым
	for _, minute := range []int{10, 1, 2, 3} {
		require.NoError(t, db.Repos().Pings.Create(ctx, &models.PingEvent{
			MonitorID:    monitor.ID,
			DriftSeconds: int64(minute),
			CreatedAt:    base.Add(time.Duration(minute) * time.Minute),
		}))
	}

	pings, err := db.Repos().Pings.ListRecent(ctx, monitor.ID, 2)
	require.NoError(t, err)
	require.Len(t, pings, 2)
	assert.Equal(t, []int64{10, 3}, []int64{pings[0].DriftSeconds, pings[1].DriftSeconds})
}

func TestMemoryOwnerStore_APIKeyPrefixLookup(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	owner := &models.Owner{Email: "ops@example.com"}
	require.NoError(t, db.Repos().Owners.Create(ctx, owner))
	require.Error(t, db.Repos().Owners.Create(ctx, &models.Owner{Email: "ops@example.com"}))

	require.NoError(t, db.Repos().Owners.UpdateAPIKey(ctx, owner.ID, "abc123", "hash"))

	got, err := db.Repos().Owners.GetByAPIKeyPrefix(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, owner.ID, got.ID)

	missing, err := db.Repos().Owners.GetByAPIKeyPrefix(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryOwnerStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	owner, monitor := seedMonitor(t, db)
	_, other := seedMonitor(t, db)
	repos := db.Repos()

	second := &models.Monitor{OwnerID: owner.ID, Name: "etl", Key: "key-etl", Interval: 5, Status: models.MonitorStatusUp}
	require.NoError(t, repos.Monitors.Create(ctx, second))

	for _, id := range []string{monitor.ID, second.ID, other.ID} {
		require.NoError(t, repos.Pings.Create(ctx, &models.PingEvent{MonitorID: id}))
		_, _, err := repos.Downtimes.Open(ctx, id, time.Now())
		require.NoError(t, err)
	}

	require.NoError(t, repos.Owners.Delete(ctx, owner.ID))
	assert.ErrorIs(t, repos.Owners.Delete(ctx, owner.ID), ErrNotFound)

	gone, err := repos.Owners.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	monitors, err := repos.Monitors.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, monitors)

	for _, id := range []string{monitor.ID, second.ID} {
		pings, err := repos.Pings.ListRecent(ctx, id, 10)
		require.NoError(t, err)
		assert.Empty(t, pings)

		downtimes, err := repos.Downtimes.ListRecent(ctx, id, 10)
		require.NoError(t, err)
		assert.Empty(t, downtimes)
	}

	// чужие данные не трогаем
	kept, err := repos.Monitors.GetByID(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)

	otherPings, err := repos.Pings.ListRecent(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Len(t, otherPings, 1)

	otherDowntimes, err := repos.Downtimes.ListRecent(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Len(t, otherDowntimes, 1)
}
