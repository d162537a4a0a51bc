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

type ownerStore struct {
	db dbtx
}

func (s *ownerStore) Create(ctx context.Context, owner *models.Owner) error {
	if owner.ID == "" {
		owner.ID = uuidutil.New()
	}
	now := time.Now().UTC()
	owner.CreatedAt = now
	owner.UpdatedAt = now

	query := `
		INSERT INTO owners (id, email, api_key_prefix, api_key_hash, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		owner.ID,
		owner.Email,
		owner.APIKeyPrefix,
		owner.APIKeyHash,
		owner.CreatedAt,
		owner.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create owner: %w", err)
	}

	return nil
}

func (s *ownerStore) GetByID(ctx context.Context, id string) (*models.Owner, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

func (s *ownerStore) GetByEmail(ctx context.Context, email string) (*models.Owner, error) {
	return s.getOne(ctx, `WHERE email = $1`, email)
}

func (s *ownerStore) GetByAPIKeyPrefix(ctx context.Context, prefix string) (*models.Owner, error) {
	return s.getOne(ctx, `WHERE api_key_prefix = $1`, prefix)
}

func (s *ownerStore) getOne(ctx context.Context, where string, arg string) (*models.Owner, error) {
	query := `
		SELECT id, email, COALESCE(api_key_prefix, ''), api_key_hash, created_at, updated_at
		FROM owners ` + where

	var owner models.Owner
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&owner.ID,
		&owner.Email,
		&owner.APIKeyPrefix,
		&owner.APIKeyHash,
		&owner.CreatedAt,
		&owner.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}

	return &owner, nil
}

func (s *ownerStore) UpdateAPIKey(ctx context.Context, id, prefix, hash string) error {
	query := `
		UPDATE owners
		SET api_key_prefix = $1, api_key_hash = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.Exec(ctx, query, prefix, hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update owner api key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("owner %s: %w", id, ErrNotFound)
	}

	return nil
}

// мониторы, пинги и простои удаляет ON DELETE CASCADE
func (s *ownerStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM owners WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete owner: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("owner %s: %w", id, ErrNotFound)
	}

	return nil
}
