package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type mockOrgResolver struct {
	orgs map[string]models.Organization
}

func (m *mockOrgResolver) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	if org, ok := m.orgs[id]; ok {
		return &org, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrgResolver) FindBySelector(ctx context.Context, selector string) (*models.Organization, error) {
	for _, org := range m.orgs {
		if org.ID == selector || org.Code == selector {
			found := org
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockLastOrgCache struct {
	last       map[string]string
	remembered map[string]string
	lookupErr  error
}

func (m *mockLastOrgCache) LastOrganization(ctx context.Context, principalID string) (string, error) {
	if m.lookupErr != nil {
		return "", m.lookupErr
	}
	if orgID, ok := m.last[principalID]; ok {
		return orgID, nil
	}
	return "", appErrors.ErrCacheMiss
}

func (m *mockLastOrgCache) RememberOrganization(ctx context.Context, principalID, orgID string, ttl time.Duration) error {
	if m.remembered == nil {
		m.remembered = make(map[string]string)
	}
	m.remembered[principalID] = orgID
	return nil
}

func scopedClaims(role models.UserRole, orgID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: role, OrganizationID: orgID}
}

func TestResolveOrganizationMembership(t *testing.T) {
	orgs := &mockOrgResolver{orgs: map[string]models.Organization{"org-1": {ID: "org-1", Code: "north", Active: true}}}
	cache := &mockLastOrgCache{}
	svc := NewTenantContextService(orgs, cache, time.Minute, zap.NewNop())

	orgID, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RoleAdmin, "org-1"), "")
	require.NoError(t, err)
	assert.Equal(t, "org-1", orgID)
	assert.Equal(t, "org-1", cache.remembered["user-1"])
}

func TestResolveOrganizationSelectorMatchesMembership(t *testing.T) {
	orgs := &mockOrgResolver{orgs: map[string]models.Organization{"org-1": {ID: "org-1", Code: "north", Active: true}}}
	svc := NewTenantContextService(orgs, &mockLastOrgCache{}, time.Minute, zap.NewNop())

	orgID, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RoleTeacher, "org-1"), "north")
	require.NoError(t, err)
	assert.Equal(t, "org-1", orgID)
}

func TestResolveOrganizationForeignSelectorFailsClosed(t *testing.T) {
	orgs := &mockOrgResolver{orgs: map[string]models.Organization{
		"org-1": {ID: "org-1", Code: "north", Active: true},
		"org-2": {ID: "org-2", Code: "south", Active: true},
	}}
	svc := NewTenantContextService(orgs, &mockLastOrgCache{}, time.Minute, zap.NewNop())

	_, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RoleAdmin, "org-1"), "south")
	assert.ErrorIs(t, err, appErrors.ErrOrganizationMismatch)
}

func TestResolveOrganizationUnknownSelectorIndistinguishable(t *testing.T) {
	orgs := &mockOrgResolver{orgs: map[string]models.Organization{"org-1": {ID: "org-1", Code: "north", Active: true}}}
	svc := NewTenantContextService(orgs, &mockLastOrgCache{}, time.Minute, zap.NewNop())

	_, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RoleAdmin, "org-1"), "nope")
	assert.ErrorIs(t, err, appErrors.ErrOrganizationMismatch)
}

func TestResolveOrganizationMissingEverywhere(t *testing.T) {
	svc := NewTenantContextService(&mockOrgResolver{}, &mockLastOrgCache{}, time.Minute, zap.NewNop())

	_, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RoleTeacher, ""), "")
	assert.ErrorIs(t, err, appErrors.ErrNoOrganizationSelected)
}

func TestResolveOrganizationCacheFallback(t *testing.T) {
	cache := &mockLastOrgCache{last: map[string]string{"user-1": "org-9"}}
	svc := NewTenantContextService(&mockOrgResolver{}, cache, time.Minute, zap.NewNop())

	orgID, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RoleTeacher, ""), "")
	require.NoError(t, err)
	assert.Equal(t, "org-9", orgID)
}

func TestResolveOrganizationCacheFailureIsNotFatal(t *testing.T) {
	cache := &mockLastOrgCache{lookupErr: errors.New("redis down")}
	svc := NewTenantContextService(&mockOrgResolver{}, cache, time.Minute, zap.NewNop())

	_, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RoleTeacher, ""), "")
	assert.ErrorIs(t, err, appErrors.ErrNoOrganizationSelected)
}

func TestResolveOrganizationPlatformAdminSelectsAny(t *testing.T) {
	orgs := &mockOrgResolver{orgs: map[string]models.Organization{"org-2": {ID: "org-2", Code: "south", Active: true}}}
	cache := &mockLastOrgCache{}
	svc := NewTenantContextService(orgs, cache, time.Minute, zap.NewNop())

	orgID, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RolePlatformAdmin, ""), "south")
	require.NoError(t, err)
	assert.Equal(t, "org-2", orgID)
}

func TestResolveOrganizationPlatformAdminWithoutSelector(t *testing.T) {
	svc := NewTenantContextService(&mockOrgResolver{}, &mockLastOrgCache{}, time.Minute, zap.NewNop())

	_, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RolePlatformAdmin, ""), "")
	assert.ErrorIs(t, err, appErrors.ErrNoOrganizationSelected)
}

func TestResolveOrganizationPlatformAdminInactiveOrg(t *testing.T) {
	orgs := &mockOrgResolver{orgs: map[string]models.Organization{"org-2": {ID: "org-2", Code: "south", Active: false}}}
	svc := NewTenantContextService(orgs, &mockLastOrgCache{}, time.Minute, zap.NewNop())

	_, err := svc.ResolveOrganization(context.Background(), scopedClaims(models.RolePlatformAdmin, ""), "south")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestResolveOrganizationNilClaims(t *testing.T) {
	svc := NewTenantContextService(&mockOrgResolver{}, nil, time.Minute, zap.NewNop())

	_, err := svc.ResolveOrganization(context.Background(), nil, "org-1")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
