package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// ContextScopeKey is the gin context key storing the resolved RequestContext.
const ContextScopeKey = "requestScope"

// Header and query names for explicit scope selection.
const (
	HeaderOrganization = "X-Organization-ID"
	HeaderTerm         = "X-Term-ID"
	queryOrganization  = "org"
	queryTerm          = "term"
)

// Tenancy resolves the (organization, term) scope for every request behind
// it and stores the result as a RequestContext. Resolution is fail closed: a
// selector that cannot be tied to the caller's membership rejects the
// request, it never falls back to another organization. A missing current
// term does not block here; term-scoped operations reject lazily so that
// organization-level endpoints keep working between terms.
func Tenancy(tenants *service.TenantContextService, terms *service.TermContextService, metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		orgSelector := c.GetHeader(HeaderOrganization)
		if orgSelector == "" {
			orgSelector = c.Query(queryOrganization)
		}

		orgID, err := tenants.ResolveOrganization(c.Request.Context(), claims, orgSelector)
		if err != nil {
			metrics.RecordScopeResolution(appErrors.FromError(err).Code)
			response.Error(c, err)
			c.Abort()
			return
		}

		rc := &models.RequestContext{
			OrganizationID: orgID,
			PrincipalID:    claims.UserID,
			PersonID:       claims.PersonID,
			Role:           claims.Role,
		}

		termSelector := c.GetHeader(HeaderTerm)
		if termSelector == "" {
			termSelector = c.Query(queryTerm)
		}

		term, err := terms.ResolveTerm(c.Request.Context(), orgID, termSelector)
		switch {
		case err == nil:
			rc.TermID = term.ID
		case errors.Is(err, appErrors.ErrNoCurrentTerm):
			// leave TermID empty
		default:
			metrics.RecordScopeResolution(appErrors.FromError(err).Code)
			response.Error(c, err)
			c.Abort()
			return
		}

		metrics.RecordScopeResolution("ok")
		c.Set(ContextScopeKey, rc)
		c.Next()
	}
}

// Scope returns the resolved RequestContext of the current request.
func Scope(c *gin.Context) (*models.RequestContext, bool) {
	value, exists := c.Get(ContextScopeKey)
	if !exists {
		return nil, false
	}
	rc, ok := value.(*models.RequestContext)
	return rc, ok
}
