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

type termResolver interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindCurrent(ctx context.Context, orgID string) (*models.Term, error)
}

type currentTermCache interface {
	CurrentTerm(ctx context.Context, orgID string) (*models.Term, error)
	SetCurrentTerm(ctx context.Context, orgID string, term *models.Term, ttl time.Duration) error
	InvalidateCurrentTerm(ctx context.Context, orgID string) error
}

// TermContextService resolves the active term for an already-resolved
// organization. An explicit term selector is verified against the
// organization; absent a selector the organization's current term is used.
type TermContextService struct {
	terms    termResolver
	cache    currentTermCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewTermContextService creates a term context resolver.
func NewTermContextService(terms termResolver, cache currentTermCache, cacheTTL time.Duration, logger *zap.Logger) *TermContextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermContextService{terms: terms, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ResolveTerm derives the active term for the organization. An explicit
// selector belonging to another organization fails with
// ErrTermOrganizationMismatch; it is never silently swapped for the current
// term. No selector and no current term is ErrNoCurrentTerm, a distinct
// failure because grade averages and fee dues are undefined without a term.
func (s *TermContextService) ResolveTerm(ctx context.Context, orgID, selector string) (*models.Term, error) {
	if orgID == "" {
		return nil, appErrors.ErrNoOrganizationSelected
	}

	if selector != "" {
		term, err := s.terms.FindByID(ctx, selector)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrTermOrganizationMismatch
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve term selector")
		}
		if term.OrganizationID != orgID {
			return nil, appErrors.ErrTermOrganizationMismatch
		}
		return term, nil
	}

	if s.cache != nil {
		cached, err := s.cache.CurrentTerm(ctx, orgID)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("current term cache lookup failed", zap.String("organization_id", orgID), zap.Error(err))
		}
	}

	term, err := s.terms.FindCurrent(ctx, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoCurrentTerm
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}

	if s.cache != nil {
		if err := s.cache.SetCurrentTerm(ctx, orgID, term, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache current term", zap.String("organization_id", orgID), zap.Error(err))
		}
	}

	return term, nil
}

// ObservePromotion replaces the cached current term right after a promotion
// commits, so the very next resolution sees the new term.
func (s *TermContextService) ObservePromotion(ctx context.Context, orgID string, promoted *models.Term) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCurrentTerm(ctx, orgID); err != nil {
		s.logger.Warn("failed to invalidate current term cache", zap.String("organization_id", orgID), zap.Error(err))
		return
	}
	if promoted != nil {
		if err := s.cache.SetCurrentTerm(ctx, orgID, promoted, s.cacheTTL); err != nil {
			s.logger.Warn("failed to refresh current term cache", zap.String("organization_id", orgID), zap.Error(err))
		}
	}
}
