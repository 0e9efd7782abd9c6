package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

const (
	lastOrgKeyPrefix     = "tenancy:last_org:"
	currentTermKeyPrefix = "tenancy:current_term:"
)

// CacheRepository provides the Redis-backed caches the context resolvers
// consult: the per-principal last-known organization and the per-organization
// current term. Both are keyed by their owner, never global; a nil client
// degrades to cache misses so the resolvers fall through to the database.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// LastOrganization returns the last organization resolved for a principal.
func (r *CacheRepository) LastOrganization(ctx context.Context, principalID string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrCacheMiss
	}

	orgID, err := r.client.Get(ctx, lastOrgKeyPrefix+principalID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("redis get last org for %s: %w", principalID, err)
	}
	return orgID, nil
}

// RememberOrganization stores the organization a principal last resolved.
func (r *CacheRepository) RememberOrganization(ctx context.Context, principalID, orgID string, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, lastOrgKeyPrefix+principalID, orgID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set last org for %s: %w", principalID, err)
	}
	return nil
}

// CurrentTerm returns the cached current term of an organization.
func (r *CacheRepository) CurrentTerm(ctx context.Context, orgID string) (*models.Term, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, currentTermKeyPrefix+orgID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get current term for %s: %w", orgID, err)
	}

	var term models.Term
	if err := json.Unmarshal(raw, &term); err != nil {
		return nil, fmt.Errorf("unmarshal current term for %s: %w", orgID, err)
	}
	return &term, nil
}

// SetCurrentTerm caches the current term of an organization.
func (r *CacheRepository) SetCurrentTerm(ctx context.Context, orgID string, term *models.Term, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(term)
	if err != nil {
		return fmt.Errorf("marshal current term for %s: %w", orgID, err)
	}
	if err := r.client.Set(ctx, currentTermKeyPrefix+orgID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set current term for %s: %w", orgID, err)
	}
	return nil
}

// InvalidateCurrentTerm drops the cached current term for an organization.
// Called right after a promotion commits so no resolution observes the
// superseded term.
func (r *CacheRepository) InvalidateCurrentTerm(ctx context.Context, orgID string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, currentTermKeyPrefix+orgID).Err(); err != nil {
		return fmt.Errorf("redis delete current term for %s: %w", orgID, err)
	}
	return nil
}
