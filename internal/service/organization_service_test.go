package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type mockOrgDirectory struct {
	orgs        map[string]models.Organization
	bulkErr     error
	bulkApplied []models.OrganizationStatusUpdate
}

func (m *mockOrgDirectory) List(ctx context.Context, filter models.OrganizationFilter) ([]models.Organization, int, error) {
	out := make([]models.Organization, 0, len(m.orgs))
	for _, org := range m.orgs {
		out = append(out, org)
	}
	return out, len(out), nil
}

func (m *mockOrgDirectory) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	if org, ok := m.orgs[id]; ok {
		found := org
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrgDirectory) FindBySelector(ctx context.Context, selector string) (*models.Organization, error) {
	for _, org := range m.orgs {
		if org.ID == selector || org.Code == selector {
			found := org
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrgDirectory) Create(ctx context.Context, org *models.Organization) error {
	if m.orgs == nil {
		m.orgs = make(map[string]models.Organization)
	}
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	m.orgs[org.ID] = *org
	return nil
}

func (m *mockOrgDirectory) Update(ctx context.Context, org *models.Organization) error {
	m.orgs[org.ID] = *org
	return nil
}

func (m *mockOrgDirectory) BulkUpdateStatus(ctx context.Context, updates []models.OrganizationStatusUpdate) error {
	if m.bulkErr != nil {
		return m.bulkErr
	}
	m.bulkApplied = append(m.bulkApplied, updates...)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func TestOrganizationServiceCreate(t *testing.T) {
	repo := &mockOrgDirectory{}
	svc := NewOrganizationService(repo, nil, validator.New(), zap.NewNop())

	org, err := svc.Create(context.Background(), CreateOrganizationRequest{Code: "north01", Name: "North Campus"})
	require.NoError(t, err)
	assert.Equal(t, "NORTH01", org.Code)
	assert.True(t, org.Active)
	assert.False(t, org.Verified)
}

func TestOrganizationServiceBulkUpdateStatus(t *testing.T) {
	repo := &mockOrgDirectory{}
	audit := &mockAuditWriter{}
	svc := NewOrganizationService(repo, audit, validator.New(), zap.NewNop())

	err := svc.BulkUpdateStatus(context.Background(), "admin-1", BulkOrganizationStatusRequest{
		Updates: []models.OrganizationStatusUpdate{
			{OrganizationID: uuid.NewString(), Active: boolPtr(false)},
			{OrganizationID: uuid.NewString(), Verified: boolPtr(true)},
		},
	})
	require.NoError(t, err)
	assert.Len(t, repo.bulkApplied, 2)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionBulkOrgStatus, audit.logs[0].Action)
}

func TestOrganizationServiceBulkUpdateStatusEmptyUpdate(t *testing.T) {
	svc := NewOrganizationService(&mockOrgDirectory{}, nil, validator.New(), zap.NewNop())

	err := svc.BulkUpdateStatus(context.Background(), "admin-1", BulkOrganizationStatusRequest{
		Updates: []models.OrganizationStatusUpdate{{OrganizationID: uuid.NewString()}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOrganizationServiceBulkUpdateStatusUnknownIDAborts(t *testing.T) {
	repo := &mockOrgDirectory{bulkErr: appErrors.Clone(appErrors.ErrNotFound, "organization not found")}
	svc := NewOrganizationService(repo, nil, validator.New(), zap.NewNop())

	err := svc.BulkUpdateStatus(context.Background(), "admin-1", BulkOrganizationStatusRequest{
		Updates: []models.OrganizationStatusUpdate{{OrganizationID: uuid.NewString(), Active: boolPtr(true)}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.bulkApplied)
}

func TestOrganizationServiceGetNotFound(t *testing.T) {
	svc := NewOrganizationService(&mockOrgDirectory{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
