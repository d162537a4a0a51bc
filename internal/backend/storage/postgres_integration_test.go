package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"SilentFail/internal/backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// запускается только при SILENTFAIL_TEST_DATABASE_URL=postgres://...
func newPostgresTestDatabase(t *testing.T) Database {
	t.Helper()
	url := os.Getenv("SILENTFAIL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SILENTFAIL_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := NewPostgresDatabase(pool)
	require.NoError(t, EnsureSchema(ctx, db, slog.Default()))
	return db
}

func TestPostgres_HeartbeatTransactionAndSweepGuard(t *testing.T) {
	db := newPostgresTestDatabase(t)
	_, monitor := seedMonitor(t, db)
	ctx := context.Background()
	t.Cleanup(func() { _ = db.Repos().Monitors.Delete(context.Background(), monitor.ID) })

	lastPing := time.Now().UTC().Truncate(time.Microsecond)
	err := db.WithinTx(ctx, func(ctx context.Context, tx Repositories) error {
		locked, err := tx.Monitors.LockByKey(ctx, monitor.Key)
		if err != nil {
			return err
		}
		require.NotNil(t, locked)
		if err := tx.Pings.Create(ctx, &models.PingEvent{MonitorID: locked.ID, CreatedAt: lastPing}); err != nil {
			return err
		}
		return tx.Monitors.UpdateState(ctx, locked.ID, models.MonitorStatusUp, &lastPing, 2)
	})
	require.NoError(t, err)

	candidates, err := db.Repos().Monitors.ListUpWithOwnerEmail(ctx)
	require.NoError(t, err)
	var found *models.SweepCandidate
	for _, c := range candidates {
		if c.ID == monitor.ID {
			found = c
		}
	}
	require.NotNil(t, found)
	require.NotNil(t, found.LastPing)
	assert.True(t, found.LastPing.Equal(lastPing))

	marked, err := db.Repos().Monitors.MarkDown(ctx, []models.StatusTransition{{MonitorID: monitor.ID, ExpectedLastPing: *found.LastPing}})
	require.NoError(t, err)
	assert.Equal(t, []string{monitor.ID}, marked)

	marked, err = db.Repos().Monitors.MarkDown(ctx, []models.StatusTransition{{MonitorID: monitor.ID, ExpectedLastPing: *found.LastPing}})
	require.NoError(t, err)
	assert.Empty(t, marked)

	_, created, err := db.Repos().Downtimes.Open(ctx, monitor.ID, lastPing)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = db.Repos().Downtimes.Open(ctx, monitor.ID, lastPing)
	require.NoError(t, err)
	assert.False(t, created)
}
