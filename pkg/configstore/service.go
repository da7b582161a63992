package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

const cacheTTL = 5 * time.Minute

// Service serves per-tenant assignment configs. Reads go through Redis;
// updates invalidate the cache key before returning so the next assignment
// decision always sees the new config (read-after-write consistency).
type Service struct {
	store    *store.Store
	cache    domain.CacheRepository
	validate *validator.Validate
	logger   logger.Logger
}

// NewService creates a new config service.
func NewService(st *store.Store, cacheClient domain.CacheRepository, log logger.Logger) *Service {
	return &Service{
		store:    st,
		cache:    cacheClient,
		validate: validator.New(),
		logger:   log,
	}
}

func cacheKey(tenantID int) string {
	return fmt.Sprintf("assignment_config:%d", tenantID)
}

// Get returns a tenant's assignment config, from cache when possible.
func (s *Service) Get(ctx context.Context, tenantID int) (*models.AssignmentConfig, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(tenantID)); err == nil && raw != "" {
			var cfg models.AssignmentConfig
			if err := json.Unmarshal([]byte(raw), &cfg); err == nil {
				return &cfg, nil
			}
			// A corrupt cache entry falls through to the database.
			s.logger.Warn("discarding unreadable cached config", "tenant_id", tenantID)
		}
	}

	cfg, err := s.store.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(cfg); err == nil {
			if err := s.cache.Set(ctx, cacheKey(tenantID), string(raw), cacheTTL); err != nil {
				s.logger.Warn("failed to cache config", "tenant_id", tenantID, "error", err)
			}
		}
	}
	return cfg, nil
}

// Update validates and persists a tenant's config, then invalidates the
// cache. A config change must never be missed mid-rotation, so invalidation
// happens before the ack is returned, not lazily.
func (s *Service) Update(ctx context.Context, cfg *models.AssignmentConfig) error {
	if err := s.validate.Struct(cfg); err != nil {
		return domain.NewValidationError(err.Error())
	}

	seen := make(map[int]bool, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if seen[a.AgentID] {
			return domain.NewValidationError(fmt.Sprintf("agent %d listed twice", a.AgentID))
		}
		seen[a.AgentID] = true
	}

	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(cfg.TenantID)); err != nil {
			// The stale entry would outlive the update for up to the TTL,
			// which breaks read-after-write. Treat as a real error.
			return fmt.Errorf("failed to invalidate config cache: %w", err)
		}
	}

	s.logger.Info("assignment config updated",
		"tenant_id", cfg.TenantID,
		"method", cfg.Method,
		"agents", len(cfg.Agents))
	return nil
}
