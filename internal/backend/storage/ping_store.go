package storage

import (
	"context"
	"fmt"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/pkg/uuidutil"
)

type pingStore struct {
	db dbtx
}

func (s *pingStore) Create(ctx context.Context, ping *models.PingEvent) error {
	if ping.ID == "" {
		ping.ID = uuidutil.New()
	}
	if ping.CreatedAt.IsZero() {
		ping.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ping_events (id, monitor_id, drift_seconds, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := s.db.Exec(ctx, query, ping.ID, ping.MonitorID, ping.DriftSeconds, ping.CreatedAt); err != nil {
		return fmt.Errorf("failed to create ping event: %w", err)
	}

	return nil
}

// ListRecent последние пинги, от новых к старым
func (s *pingStore) ListRecent(ctx context.Context, monitorID string, limit int) ([]*models.PingEvent, error) {
	query := `
		SELECT id, monitor_id, drift_seconds, created_at
		FROM ping_events
		WHERE monitor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent pings: %w", err)
	}
	defer rows.Close()

	var pings []*models.PingEvent
	for rows.Next() {
		var ping models.PingEvent
		if err := rows.Scan(&ping.ID, &ping.MonitorID, &ping.DriftSeconds, &ping.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ping row: %w", err)
		}
		pings = append(pings, &ping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ping rows: %w", err)
	}

	return pings, nil
}
