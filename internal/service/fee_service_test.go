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

// stubAccess and stubGuard stand in for the access service and scope guard
// across the domain service tests.
type stubAccess struct {
	denied bool
	last   AccessRequest
}

func (s *stubAccess) Authorize(ctx context.Context, rc *models.RequestContext, req AccessRequest) error {
	s.last = req
	if s.denied {
		return appErrors.ErrInsufficientRole
	}
	return nil
}

type stubGuard struct {
	refErr  error
	termErr error
	checked []models.Reference
}

func (s *stubGuard) CheckReferences(ctx context.Context, rc *models.RequestContext, refs ...models.Reference) error {
	s.checked = append(s.checked, refs...)
	return s.refErr
}

func (s *stubGuard) CheckTermScoped(ctx context.Context, rc *models.RequestContext, refs ...models.Reference) error {
	s.checked = append(s.checked, refs...)
	if s.termErr != nil {
		return s.termErr
	}
	return s.refErr
}

type mockFeeRepo struct {
	structures  map[string]models.FeeStructure
	assignments map[string]models.FeeAssignment
	payments    []models.FeePayment
	bulkErr     error
	bulkCreated []models.FeeAssignment
	lastFilter  models.FeeAssignmentFilter
}

func (m *mockFeeRepo) ListStructures(ctx context.Context, orgID, termID string) ([]models.FeeStructure, error) {
	out := make([]models.FeeStructure, 0, len(m.structures))
	for _, s := range m.structures {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockFeeRepo) FindStructureByID(ctx context.Context, orgID, id string) (*models.FeeStructure, error) {
	if s, ok := m.structures[id]; ok {
		found := s
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) CreateStructure(ctx context.Context, structure *models.FeeStructure) error {
	if m.structures == nil {
		m.structures = make(map[string]models.FeeStructure)
	}
	if structure.ID == "" {
		structure.ID = uuid.NewString()
	}
	m.structures[structure.ID] = *structure
	return nil
}

func (m *mockFeeRepo) ListAssignments(ctx context.Context, orgID, termID string, filter models.FeeAssignmentFilter) ([]models.FeeAssignment, int, error) {
	m.lastFilter = filter
	out := make([]models.FeeAssignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockFeeRepo) FindAssignmentByID(ctx context.Context, orgID, id string) (*models.FeeAssignment, error) {
	if a, ok := m.assignments[id]; ok {
		found := a
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) BulkCreateAssignments(ctx context.Context, orgID string, assignments []models.FeeAssignment) error {
	if m.bulkErr != nil {
		return m.bulkErr
	}
	m.bulkCreated = append(m.bulkCreated, assignments...)
	return nil
}

func (m *mockFeeRepo) CreatePayment(ctx context.Context, payment *models.FeePayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	m.payments = append(m.payments, *payment)
	return nil
}

func (m *mockFeeRepo) ListPayments(ctx context.Context, orgID, assignmentID string) ([]models.FeePayment, error) {
	return m.payments, nil
}

func TestFeeServiceBulkAssign(t *testing.T) {
	structureID := uuid.NewString()
	studentA := uuid.NewString()
	studentB := uuid.NewString()
	repo := &mockFeeRepo{structures: map[string]models.FeeStructure{
		structureID: {ID: structureID, OrganizationID: "org-1", TermID: "term-1", AmountCents: 150000},
	}}
	guard := &stubGuard{}
	svc := NewFeeService(repo, &stubAccess{}, guard, validator.New(), zap.NewNop())

	assignments, err := svc.BulkAssign(context.Background(), requestContext(models.RoleAdmin), BulkAssignFeesRequest{
		FeeStructureID: structureID,
		StudentIDs:     []string{studentA, studentB, studentA},
	})
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, int64(150000), assignments[0].AmountCents)
	assert.Equal(t, models.FeeAssignmentPending, assignments[0].Status)
	assert.Equal(t, "term-1", assignments[0].TermID)
	require.Len(t, guard.checked, 1)
	assert.Equal(t, models.RefFeeStructure, guard.checked[0].Kind)
}

func TestFeeServiceBulkAssignCrossTenantStructure(t *testing.T) {
	repo := &mockFeeRepo{}
	guard := &stubGuard{refErr: appErrors.ErrCrossTenantReference}
	svc := NewFeeService(repo, &stubAccess{}, guard, validator.New(), zap.NewNop())

	_, err := svc.BulkAssign(context.Background(), requestContext(models.RoleAdmin), BulkAssignFeesRequest{
		FeeStructureID: uuid.NewString(),
		StudentIDs:     []string{uuid.NewString()},
	})
	assert.ErrorIs(t, err, appErrors.ErrCrossTenantReference)
	assert.Empty(t, repo.bulkCreated)
}

func TestFeeServiceBulkAssignAllOrNothing(t *testing.T) {
	structureID := uuid.NewString()
	repo := &mockFeeRepo{
		structures: map[string]models.FeeStructure{
			structureID: {ID: structureID, OrganizationID: "org-1", TermID: "term-1", AmountCents: 100},
		},
		bulkErr: appErrors.ErrCrossTenantReference,
	}
	svc := NewFeeService(repo, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	_, err := svc.BulkAssign(context.Background(), requestContext(models.RoleAdmin), BulkAssignFeesRequest{
		FeeStructureID: structureID,
		StudentIDs:     []string{uuid.NewString(), uuid.NewString()},
	})
	assert.ErrorIs(t, err, appErrors.ErrCrossTenantReference)
	assert.Empty(t, repo.bulkCreated)
}

func TestFeeServiceBulkAssignWithoutTerm(t *testing.T) {
	svc := NewFeeService(&mockFeeRepo{}, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())
	rc := requestContext(models.RoleAdmin)
	rc.TermID = ""

	_, err := svc.BulkAssign(context.Background(), rc, BulkAssignFeesRequest{
		FeeStructureID: uuid.NewString(),
		StudentIDs:     []string{uuid.NewString()},
	})
	assert.ErrorIs(t, err, appErrors.ErrNoCurrentTerm)
}

func TestFeeServiceRecordPayment(t *testing.T) {
	assignmentID := uuid.NewString()
	repo := &mockFeeRepo{assignments: map[string]models.FeeAssignment{
		assignmentID: {ID: assignmentID, OrganizationID: "org-1", TermID: "term-1", StudentID: "student-1", Status: models.FeeAssignmentPending},
	}}
	svc := NewFeeService(repo, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	payment, err := svc.RecordPayment(context.Background(), requestContext(models.RoleAdmin), RecordPaymentRequest{
		FeeAssignmentID: assignmentID,
		AmountCents:     50000,
		Method:          "transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, "student-1", payment.StudentID)
	assert.Equal(t, "term-1", payment.TermID)
	assert.False(t, payment.PaidAt.IsZero())
}

func TestFeeServiceRecordPaymentOnSettledAssignment(t *testing.T) {
	assignmentID := uuid.NewString()
	repo := &mockFeeRepo{assignments: map[string]models.FeeAssignment{
		assignmentID: {ID: assignmentID, OrganizationID: "org-1", Status: models.FeeAssignmentSettled},
	}}
	svc := NewFeeService(repo, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	_, err := svc.RecordPayment(context.Background(), requestContext(models.RoleAdmin), RecordPaymentRequest{
		FeeAssignmentID: assignmentID,
		AmountCents:     100,
		Method:          "cash",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.payments)
}

// A student's unfiltered assignment list is pinned to their own record; a
// guardian must name a ward.
func TestFeeServiceListAssignmentsPinned(t *testing.T) {
	repo := &mockFeeRepo{}
	svc := NewFeeService(repo, NewAccessService(&mockTeachingReader{}, &mockWardReader{wards: []string{"stu-ward"}}, zap.NewNop()), &stubGuard{}, validator.New(), zap.NewNop())

	rc := requestContext(models.RoleStudent)
	rc.PersonID = "stu-self"
	_, _, err := svc.ListAssignments(context.Background(), rc, models.FeeAssignmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "stu-self", repo.lastFilter.StudentID)

	_, _, err = svc.ListAssignments(context.Background(), requestContext(models.RoleGuardian), models.FeeAssignmentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	_, _, err = svc.ListAssignments(context.Background(), requestContext(models.RoleGuardian), models.FeeAssignmentFilter{StudentID: "stu-ward"})
	require.NoError(t, err)
}

func TestFeeServiceDeniedByAccess(t *testing.T) {
	svc := NewFeeService(&mockFeeRepo{}, &stubAccess{denied: true}, &stubGuard{}, validator.New(), zap.NewNop())

	_, err := svc.ListStructures(context.Background(), requestContext(models.RoleStudent))
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}
