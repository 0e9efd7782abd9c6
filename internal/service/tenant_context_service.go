package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type organizationResolver interface {
	FindByID(ctx context.Context, id string) (*models.Organization, error)
	FindBySelector(ctx context.Context, selector string) (*models.Organization, error)
}

type lastOrgCache interface {
	LastOrganization(ctx context.Context, principalID string) (string, error)
	RememberOrganization(ctx context.Context, principalID, orgID string, ttl time.Duration) error
}

// TenantContextService resolves the active organization for one request.
// Resolution fails closed: an authenticated principal selecting an
// organization other than their membership is rejected, never redirected.
type TenantContextService struct {
	orgs     organizationResolver
	cache    lastOrgCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewTenantContextService creates a tenant context resolver.
func NewTenantContextService(orgs organizationResolver, cache lastOrgCache, cacheTTL time.Duration, logger *zap.Logger) *TenantContextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantContextService{orgs: orgs, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ResolveOrganization derives the organization id for the given claims and
// optional explicit selector (route parameter or stored preference).
//
// Platform administrators may select any organization and must select one.
// For every other role the resolved organization is always the membership;
// a differing selector yields ErrOrganizationMismatch. With no selector the
// fallback order is membership, then the per-principal last-known cache,
// then failure.
func (s *TenantContextService) ResolveOrganization(ctx context.Context, claims *models.JWTClaims, selector string) (string, error) {
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}

	if claims.Role == models.RolePlatformAdmin {
		return s.resolveForPlatformAdmin(ctx, claims, selector)
	}

	membership := claims.OrganizationID

	if selector != "" {
		org, err := s.orgs.FindBySelector(ctx, selector)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Unknown selector from a scoped principal is treated the
				// same as a foreign one: rejected, not substituted.
				return "", appErrors.ErrOrganizationMismatch
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve organization selector")
		}
		if org.ID != membership {
			return "", appErrors.ErrOrganizationMismatch
		}
		s.remember(ctx, claims.UserID, org.ID)
		return org.ID, nil
	}

	if membership != "" {
		s.remember(ctx, claims.UserID, membership)
		return membership, nil
	}

	if s.cache != nil {
		cached, err := s.cache.LastOrganization(ctx, claims.UserID)
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("last organization cache lookup failed", zap.String("principal_id", claims.UserID), zap.Error(err))
		}
	}

	return "", appErrors.ErrNoOrganizationSelected
}

func (s *TenantContextService) resolveForPlatformAdmin(ctx context.Context, claims *models.JWTClaims, selector string) (string, error) {
	if selector == "" {
		if s.cache != nil {
			cached, err := s.cache.LastOrganization(ctx, claims.UserID)
			if err == nil && cached != "" {
				return cached, nil
			}
			if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
				s.logger.Warn("last organization cache lookup failed", zap.String("principal_id", claims.UserID), zap.Error(err))
			}
		}
		return "", appErrors.ErrNoOrganizationSelected
	}

	org, err := s.orgs.FindBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve organization selector")
	}
	if !org.Active {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "organization is inactive")
	}

	s.remember(ctx, claims.UserID, org.ID)
	return org.ID, nil
}

func (s *TenantContextService) remember(ctx context.Context, principalID, orgID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.RememberOrganization(ctx, principalID, orgID, s.cacheTTL); err != nil {
		s.logger.Warn("failed to remember organization", zap.String("principal_id", principalID), zap.Error(err))
	}
}
