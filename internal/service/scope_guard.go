package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type referenceResolver interface {
	OrganizationOf(ctx context.Context, ref models.Reference) (string, error)
	TermOf(ctx context.Context, ref models.Reference) (string, error)
}

// ScopeGuard is the write-side half of the scoped data gateway. Before a
// service persists anything it passes every foreign reference on the payload
// through the guard, which resolves each to its owning organization and
// rejects the write when any resolves outside the active context. The guard
// runs before any persistence side effect, so a rejected write leaves no
// partial state.
type ScopeGuard struct {
	refs   referenceResolver
	logger *zap.Logger
}

// NewScopeGuard creates a scope guard.
func NewScopeGuard(refs referenceResolver, logger *zap.Logger) *ScopeGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeGuard{refs: refs, logger: logger}
}

// CheckReferences verifies that every reference belongs to the context's
// organization. A dangling reference is reported as a cross-tenant
// violation too: the caller cannot learn whether the id exists elsewhere.
func (g *ScopeGuard) CheckReferences(ctx context.Context, rc *models.RequestContext, refs ...models.Reference) error {
	if rc == nil || rc.OrganizationID == "" {
		return appErrors.ErrNoOrganizationSelected
	}

	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		orgID, err := g.refs.OrganizationOf(ctx, ref)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrCrossTenantReference, "entity references unknown "+string(ref.Kind))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve reference")
		}
		if orgID != rc.OrganizationID {
			g.logger.Warn("cross-tenant reference rejected",
				zap.String("kind", string(ref.Kind)),
				zap.String("organization_id", rc.OrganizationID))
			return appErrors.ErrCrossTenantReference
		}
	}

	return nil
}

// CheckTermScoped verifies organization agreement and, for term-scoped
// references, that the referenced row belongs to the context's term.
func (g *ScopeGuard) CheckTermScoped(ctx context.Context, rc *models.RequestContext, refs ...models.Reference) error {
	if err := g.CheckReferences(ctx, rc, refs...); err != nil {
		return err
	}
	if rc.TermID == "" {
		return appErrors.ErrNoCurrentTerm
	}

	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		switch ref.Kind {
		case models.RefTerm, models.RefEnrollment, models.RefFeeStructure, models.RefFeeAssign:
		default:
			continue
		}
		termID, err := g.refs.TermOf(ctx, ref)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrCrossTenantReference, "entity references unknown "+string(ref.Kind))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve reference term")
		}
		if termID != rc.TermID {
			return appErrors.ErrTermOrganizationMismatch
		}
	}

	return nil
}
