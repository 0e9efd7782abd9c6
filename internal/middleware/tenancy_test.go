package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
)

type fakeOrgResolver struct {
	orgs map[string]models.Organization
}

func (f *fakeOrgResolver) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	if org, ok := f.orgs[id]; ok {
		return &org, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeOrgResolver) FindBySelector(ctx context.Context, selector string) (*models.Organization, error) {
	for _, org := range f.orgs {
		if org.ID == selector || org.Code == selector {
			found := org
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeTermResolver struct {
	terms map[string]models.Term
}

func (f *fakeTermResolver) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := f.terms[id]; ok {
		found := term
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTermResolver) FindCurrent(ctx context.Context, orgID string) (*models.Term, error) {
	for _, term := range f.terms {
		if term.OrganizationID == orgID && term.IsCurrent {
			found := term
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func tenancyRouter(t *testing.T, orgs *fakeOrgResolver, terms *fakeTermResolver, claims *models.JWTClaims) (*gin.Engine, *models.RequestContext) {
	gin.SetMode(gin.TestMode)
	tenants := service.NewTenantContextService(orgs, nil, time.Minute, zap.NewNop())
	termCtx := service.NewTermContextService(terms, nil, time.Minute, zap.NewNop())

	captured := &models.RequestContext{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, claims)
	})
	r.Use(Tenancy(tenants, termCtx, nil))
	r.GET("/probe", func(c *gin.Context) {
		rc, ok := Scope(c)
		require.True(t, ok)
		*captured = *rc
		c.Status(http.StatusNoContent)
	})
	return r, captured
}

func TestTenancyResolvesOrganizationAndTerm(t *testing.T) {
	orgs := &fakeOrgResolver{orgs: map[string]models.Organization{"org-1": {ID: "org-1", Code: "north", Active: true}}}
	terms := &fakeTermResolver{terms: map[string]models.Term{"term-1": {ID: "term-1", OrganizationID: "org-1", IsCurrent: true}}}
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin, OrganizationID: "org-1"}
	r, captured := tenancyRouter(t, orgs, terms, claims)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "org-1", captured.OrganizationID)
	assert.Equal(t, "term-1", captured.TermID)
	assert.Equal(t, "user-1", captured.PrincipalID)
	assert.Equal(t, models.RoleAdmin, captured.Role)
}

func TestTenancyForeignOrganizationHeaderRejected(t *testing.T) {
	orgs := &fakeOrgResolver{orgs: map[string]models.Organization{
		"org-1": {ID: "org-1", Code: "north", Active: true},
		"org-2": {ID: "org-2", Code: "south", Active: true},
	}}
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin, OrganizationID: "org-1"}
	r, _ := tenancyRouter(t, orgs, &fakeTermResolver{}, claims)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderOrganization, "south")
	r.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

// A missing current term is tolerated here; term-scoped services reject
// lazily so organization-level endpoints still work between terms.
func TestTenancyMissingCurrentTermLeavesScopeOpen(t *testing.T) {
	orgs := &fakeOrgResolver{orgs: map[string]models.Organization{"org-1": {ID: "org-1", Code: "north", Active: true}}}
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin, OrganizationID: "org-1"}
	r, captured := tenancyRouter(t, orgs, &fakeTermResolver{}, claims)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Empty(t, captured.TermID)
}

func TestTenancyForeignTermHeaderRejected(t *testing.T) {
	orgs := &fakeOrgResolver{orgs: map[string]models.Organization{"org-1": {ID: "org-1", Code: "north", Active: true}}}
	terms := &fakeTermResolver{terms: map[string]models.Term{"term-x": {ID: "term-x", OrganizationID: "org-2"}}}
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin, OrganizationID: "org-1"}
	r, _ := tenancyRouter(t, orgs, terms, claims)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderTerm, "term-x")
	r.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestTenancyWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tenants := service.NewTenantContextService(&fakeOrgResolver{}, nil, time.Minute, zap.NewNop())
	termCtx := service.NewTermContextService(&fakeTermResolver{}, nil, time.Minute, zap.NewNop())

	r := gin.New()
	r.Use(Tenancy(tenants, termCtx, nil))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleTeacher})
	})
	r.Use(RequireRoles(models.RolePlatformAdmin, models.RoleOwner))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
