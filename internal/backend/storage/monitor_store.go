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

const monitorColumns = `id, owner_id, name, key, secret, interval_minutes, grace_period,
	use_smart_grace, status, last_ping, created_at, updated_at`

type monitorStore struct {
	db dbtx
}

func (s *monitorStore) Create(ctx context.Context, monitor *models.Monitor) error {
	if monitor.ID == "" {
		monitor.ID = uuidutil.New()
	}
	if monitor.CreatedAt.IsZero() {
		monitor.CreatedAt = time.Now().UTC()
	}
	monitor.UpdatedAt = monitor.CreatedAt

	query := `
		INSERT INTO monitors (` + monitorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.Exec(ctx, query,
		monitor.ID,
		monitor.OwnerID,
		monitor.Name,
		monitor.Key,
		monitor.Secret,
		monitor.Interval,
		monitor.GracePeriod,
		monitor.UseSmartGrace,
		string(monitor.Status),
		monitor.LastPing,
		monitor.CreatedAt,
		monitor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	return nil
}

func (s *monitorStore) GetByID(ctx context.Context, id string) (*models.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE id = $1`
	return s.getOne(ctx, query, id)
}

func (s *monitorStore) GetByKey(ctx context.Context, key string) (*models.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE key = $1`
	return s.getOne(ctx, query, key)
}

func (s *monitorStore) LockByKey(ctx context.Context, key string) (*models.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE key = $1 FOR UPDATE`
	return s.getOne(ctx, query, key)
}

func (s *monitorStore) getOne(ctx context.Context, query string, arg string) (*models.Monitor, error) {
	monitor, err := scanMonitor(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}
	return monitor, nil
}

func (s *monitorStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Monitor, error) {
	query := `
		SELECT ` + monitorColumns + `
		FROM monitors
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitors: %w", err)
	}
	defer rows.Close()

	var monitors []*models.Monitor
	for rows.Next() {
		monitor, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monitor row: %w", err)
		}
		monitors = append(monitors, monitor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitor rows: %w", err)
	}

	return monitors, nil
}

func (s *monitorStore) UpdateSettings(ctx context.Context, monitor *models.Monitor) error {
	query := `
		UPDATE monitors
		SET name = $1, key = $2, secret = $3, interval_minutes = $4,
			grace_period = $5, use_smart_grace = $6, updated_at = $7
		WHERE id = $8
	`

	monitor.UpdatedAt = time.Now().UTC()
	result, err := s.db.Exec(ctx, query,
		monitor.Name,
		monitor.Key,
		monitor.Secret,
		monitor.Interval,
		monitor.GracePeriod,
		monitor.UseSmartGrace,
		monitor.UpdatedAt,
		monitor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update monitor settings: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("monitor %s: %w", monitor.ID, ErrNotFound)
	}

	return nil
}

func (s *monitorStore) UpdateState(ctx context.Context, id string, status models.MonitorStatus, lastPing *time.Time, gracePeriod int) error {
	query := `
		UPDATE monitors
		SET status = $1, last_ping = $2, grace_period = $3, updated_at = now()
		WHERE id = $4
	`

	result, err := s.db.Exec(ctx, query, string(status), lastPing, gracePeriod, id)
	if err != nil {
		return fmt.Errorf("failed to update monitor state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}

	return nil
}

func (s *monitorStore) ListUpWithOwnerEmail(ctx context.Context) ([]*models.SweepCandidate, error) {
	query := `
		SELECT m.id, m.name, m.owner_id, o.email, m.last_ping, m.interval_minutes, m.grace_period
		FROM monitors m
		JOIN owners o ON o.id = m.owner_id
		WHERE m.status = 'UP'
		ORDER BY m.id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query up monitors: %w", err)
	}
	defer rows.Close()

	var candidates []*models.SweepCandidate
	for rows.Next() {
		var c models.SweepCandidate
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.OwnerID,
			&c.OwnerEmail,
			&c.LastPing,
			&c.Interval,
			&c.GracePeriod,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sweep candidate: %w", err)
		}
		candidates = append(candidates, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating up monitors: %w", err)
	}

	return candidates, nil
}

func (s *monitorStore) MarkDown(ctx context.Context, transitions []models.StatusTransition) ([]string, error) {
	if len(transitions) == 0 {
		return nil, nil
	}

	ids := make([]string, len(transitions))
	lastPings := make([]time.Time, len(transitions))
	for i, t := range transitions {
		ids[i] = t.MonitorID
		lastPings[i] = t.ExpectedLastPing
	}

	// пропускаем мониторы, которые успели получить пинг после чтения
	query := `
		UPDATE monitors AS m
		SET status = 'DOWN', updated_at = now()
		FROM unnest($1::text[], $2::timestamptz[]) AS t(id, last_ping)
		WHERE m.id = t.id AND m.status = 'UP' AND m.last_ping = t.last_ping
		RETURNING m.id
	`

	rows, err := s.db.Query(ctx, query, ids, lastPings)
	if err != nil {
		return nil, fmt.Errorf("failed to mark monitors down: %w", err)
	}
	defer rows.Close()

	var marked []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan marked monitor id: %w", err)
		}
		marked = append(marked, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating marked monitors: %w", err)
	}

	return marked, nil
}

func (s *monitorStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM monitors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete monitor: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}

	return nil
}

func scanMonitor(row pgx.Row) (*models.Monitor, error) {
	var monitor models.Monitor
	var status string

	err := row.Scan(
		&monitor.ID,
		&monitor.OwnerID,
		&monitor.Name,
		&monitor.Key,
		&monitor.Secret,
		&monitor.Interval,
		&monitor.GracePeriod,
		&monitor.UseSmartGrace,
		&status,
		&monitor.LastPing,
		&monitor.CreatedAt,
		&monitor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	monitor.Status, err = models.ParseMonitorStatus(status)
	if err != nil {
		return nil, err
	}

	return &monitor, nil
}
