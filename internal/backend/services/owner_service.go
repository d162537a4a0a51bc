package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/storage"
	"SilentFail/pkg/uuidutil"

	"golang.org/x/crypto/bcrypt"
)

const (
	APIKeyPrefix       = "sk_"
	apiKeyLookupLength = 12
	minAPIKeyBody      = 24
	maxAPIKeyLength    = 72
)

var ErrInvalidAPIKey = errors.New("invalid api key format")

type OwnerService struct {
	db         storage.Database
	events     *EventPublisher
	bcryptCost int
	logger     *slog.Logger
}

type OwnerServiceConfig struct {
	BcryptCost int
}

func NewOwnerService(db storage.Database, events *EventPublisher, cfg OwnerServiceConfig, logger *slog.Logger) *OwnerService {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &OwnerService{db: db, events: events, bcryptCost: cost, logger: logger}
}

// GenerateAPIKey новый ключ владельца вида sk_<48 hex>
func GenerateAPIKey() string {
	return APIKeyPrefix + uuidutil.NewSecret()
}

// apiKeyLookup часть ключа, по которой ищем владельца без перебора хешей
func apiKeyLookup(apiKey string) (string, error) {
	body, ok := strings.CutPrefix(apiKey, APIKeyPrefix)
	if !ok || len(body) < minAPIKeyBody || len(apiKey) > maxAPIKeyLength {
		return "", ErrInvalidAPIKey
	}
	return body[:apiKeyLookupLength], nil
}

// Authenticate находит владельца по API ключу
func (s *OwnerService) Authenticate(ctx context.Context, apiKey string) (*models.Owner, error) {
	lookup, err := apiKeyLookup(apiKey)
	if err != nil {
		s.logger.Debug("authentication failed: malformed api key", "key_length", len(apiKey))
		return nil, ErrUnauthorized
	}

	owner, err := s.db.Repos().Owners.GetByAPIKeyPrefix(ctx, lookup)
	if err != nil {
		s.logger.Error("failed to get owner by api key", "error", err)
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	if owner == nil || owner.APIKeyHash == "" {
		s.logger.Warn("authentication failed: unknown api key")
		return nil, ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(owner.APIKeyHash), []byte(apiKey)); err != nil {
		s.logger.Warn("authentication failed: api key mismatch", "owner_id", owner.ID)
		return nil, ErrUnauthorized
	}

	return owner, nil
}

// RotateAPIKey выдает владельцу новый ключ, старый перестает работать
func (s *OwnerService) RotateAPIKey(ctx context.Context, ownerID string) (string, error) {
	apiKey := GenerateAPIKey()
	if err := s.setAPIKey(ctx, ownerID, apiKey); err != nil {
		return "", err
	}

	s.logger.Info("api key rotated", "owner_id", ownerID)
	return apiKey, nil
}

// DeleteAccount удаляет владельца и все его мониторы с историей
func (s *OwnerService) DeleteAccount(ctx context.Context, ownerID string, now time.Time) error {
	var monitors []*models.Monitor
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx storage.Repositories) error {
		var err error
		monitors, err = tx.Monitors.ListByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to list owner monitors: %w", err)
		}
		return tx.Owners.Delete(ctx, ownerID)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnauthorized
		}
		s.logger.Error("failed to delete account", "error", err, "owner_id", ownerID)
		return fmt.Errorf("failed to delete account: %w", err)
	}

	s.logger.Info("account deleted", "owner_id", ownerID, "monitors", len(monitors))

	for _, m := range monitors {
		s.events.Publish(ctx, models.MonitorEvent{
			Type:        models.EventMonitorDelete,
			MonitorID:   m.ID,
			OwnerID:     ownerID,
			MonitorName: m.Name,
			Status:      m.Status,
			At:          now,
		})
	}

	return nil
}

// Bootstrap создает владельца из конфигурации.
// Возвращает сгенерированный ключ, если ключа не было и он не задан в конфиге.
func (s *OwnerService) Bootstrap(ctx context.Context, email, apiKey string) (*models.Owner, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		s.logger.Debug("bootstrap owner not configured")
		return nil, "", nil
	}

	if apiKey != "" {
		if _, err := apiKeyLookup(apiKey); err != nil {
			return nil, "", fmt.Errorf("bootstrap api key: %w", err)
		}
	}

	owners := s.db.Repos().Owners
	owner, err := owners.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get bootstrap owner: %w", err)
	}

	if owner == nil {
		owner = &models.Owner{Email: email}
		if err := owners.Create(ctx, owner); err != nil {
			s.logger.Error("failed to create bootstrap owner", "error", err, "email", email)
			return nil, "", fmt.Errorf("failed to create bootstrap owner: %w", err)
		}
		s.logger.Info("bootstrap owner created", "owner_id", owner.ID, "email", email)
	}

	switch {
	case apiKey != "":
		if bcrypt.CompareHashAndPassword([]byte(owner.APIKeyHash), []byte(apiKey)) == nil {
			return owner, "", nil
		}
		if err := s.setAPIKey(ctx, owner.ID, apiKey); err != nil {
			return nil, "", err
		}
		s.logger.Info("bootstrap api key applied", "owner_id", owner.ID)
		return owner, "", nil

	case owner.APIKeyHash == "":
		generated := GenerateAPIKey()
		if err := s.setAPIKey(ctx, owner.ID, generated); err != nil {
			return nil, "", err
		}
		return owner, generated, nil
	}

	return owner, "", nil
}

func (s *OwnerService) setAPIKey(ctx context.Context, ownerID, apiKey string) error {
	lookup, err := apiKeyLookup(apiKey)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash api key: %w", err)
	}

	if err := s.db.Repos().Owners.UpdateAPIKey(ctx, ownerID, lookup, string(hash)); err != nil {
		s.logger.Error("failed to store api key", "error", err, "owner_id", ownerID)
		return fmt.Errorf("failed to store api key: %w", err)
	}

	return nil
}
