package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/pkg/uuidutil"

	"github.com/jackc/pgx/v5"
)

const downtimeColumns = `id, monitor_id, started_at, ended_at, duration_minutes`

type downtimeStore struct {
	db dbtx
}

func (s *downtimeStore) GetOpen(ctx context.Context, monitorID string) (*models.Downtime, error) {
	query := `
		SELECT ` + downtimeColumns + `
		FROM downtimes
		WHERE monitor_id = $1 AND ended_at IS NULL
	`

	var d models.Downtime
	err := s.db.QueryRow(ctx, query, monitorID).Scan(
		&d.ID,
		&d.MonitorID,
		&d.StartedAt,
		&d.EndedAt,
		&d.DurationMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open downtime: %w", err)
	}

	return &d, nil
}

func (s *downtimeStore) Open(ctx context.Context, monitorID string, startedAt time.Time) (*models.Downtime, bool, error) {
	d := &models.Downtime{
		ID:        uuidutil.New(),
		MonitorID: monitorID,
		StartedAt: startedAt,
	}

	// частичный уникальный индекс не дает открыть второй простой
	query := `
		INSERT INTO downtimes (id, monitor_id, started_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (monitor_id) WHERE ended_at IS NULL DO NOTHING
		RETURNING id
	`

	var id string
	err := s.db.QueryRow(ctx, query, d.ID, d.MonitorID, d.StartedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open downtime: %w", err)
	}

	return d, true, nil
}

func (s *downtimeStore) Close(ctx context.Context, id string, endedAt time.Time, durationMinutes int) error {
	query := `
		UPDATE downtimes
		SET ended_at = $1, duration_minutes = $2
		WHERE id = $3 AND ended_at IS NULL
	`

	result, err := s.db.Exec(ctx, query, endedAt, durationMinutes, id)
	if err != nil {
		return fmt.Errorf("failed to close downtime: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("open downtime %s: %w", id, ErrNotFound)
	}

	return nil
}

func (s *downtimeStore) ListRecent(ctx context.Context, monitorID string, limit int) ([]*models.Downtime, error) {
	query := `
		SELECT ` + downtimeColumns + `
		FROM downtimes
		WHERE monitor_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent downtimes: %w", err)
	}
	defer rows.Close()

	return scanDowntimes(rows)
}

// ListOverlapping интервалы, пересекающие [from, to]
func (s *downtimeStore) ListOverlapping(ctx context.Context, monitorID string, from, to time.Time) ([]*models.Downtime, error) {
	query := `
		SELECT ` + downtimeColumns + `
		FROM downtimes
		WHERE monitor_id = $1
			AND started_at < $3
			AND (ended_at IS NULL OR ended_at > $2)
		ORDER BY started_at ASC
	`

	rows, err := s.db.Query(ctx, query, monitorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping downtimes: %w", err)
	}
	defer rows.Close()

	return scanDowntimes(rows)
}

func scanDowntimes(rows pgx.Rows) ([]*models.Downtime, error) {
	var downtimes []*models.Downtime
	for rows.Next() {
		var d models.Downtime
		if err := rows.Scan(&d.ID, &d.MonitorID, &d.StartedAt, &d.EndedAt, &d.DurationMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan downtime row: %w", err)
		}
		downtimes = append(downtimes, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating downtime rows: %w", err)
	}

	return downtimes, nil
}
