package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	closed      map[string]models.EnrollmentStatus
	lastFilter  models.EnrollmentFilter
}

func (m *mockEnrollmentRepo) List(ctx context.Context, orgID, termID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	m.lastFilter = filter
	out := make([]models.Enrollment, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, orgID, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok && e.OrganizationID == orgID {
		found := e
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ListActiveByStudent(ctx context.Context, orgID, termID, studentID string) ([]models.Enrollment, error) {
	out := make([]models.Enrollment, 0)
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.TermID == termID && e.Status == models.EnrollmentStatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, orgID, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	if _, ok := m.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	if m.closed == nil {
		m.closed = make(map[string]models.EnrollmentStatus)
	}
	m.closed[id] = status
	return nil
}

// A student's unfiltered enrollment list is pinned to their own record; a
// teacher without a class or student filter is denied.
func TestEnrollmentServiceListPinnedAndDenied(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := NewEnrollmentService(repo, NewAccessService(&mockTeachingReader{}, &mockWardReader{}, zap.NewNop()), &stubGuard{}, validator.New(), zap.NewNop())

	rc := requestContext(models.RoleStudent)
	rc.PersonID = "stu-self"
	_, _, err := svc.List(context.Background(), rc, models.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "stu-self", repo.lastFilter.StudentID)

	_, _, err = svc.List(context.Background(), requestContext(models.RoleTeacher), models.EnrollmentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}

func TestEnrollmentServiceCreate(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	guard := &stubGuard{}
	svc := NewEnrollmentService(repo, &stubAccess{}, guard, validator.New(), zap.NewNop())

	studentID := uuid.NewString()
	classID := uuid.NewString()
	enrollment, err := svc.Create(context.Background(), requestContext(models.RoleAdmin), CreateEnrollmentRequest{
		StudentID: studentID,
		ClassID:   classID,
	})
	require.NoError(t, err)
	assert.Equal(t, "org-1", enrollment.OrganizationID)
	assert.Equal(t, "term-1", enrollment.TermID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.Len(t, guard.checked, 2)
	assert.Equal(t, models.RefStudent, guard.checked[0].Kind)
	assert.Equal(t, models.RefClass, guard.checked[1].Kind)
}

func TestEnrollmentServiceCreateCrossTenantReference(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	guard := &stubGuard{refErr: appErrors.ErrCrossTenantReference}
	svc := NewEnrollmentService(repo, &stubAccess{}, guard, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), requestContext(models.RoleAdmin), CreateEnrollmentRequest{
		StudentID: uuid.NewString(),
		ClassID:   uuid.NewString(),
	})
	assert.ErrorIs(t, err, appErrors.ErrCrossTenantReference)
	assert.Empty(t, repo.enrollments)
}

func TestEnrollmentServiceCreateDuplicateClass(t *testing.T) {
	studentID := uuid.NewString()
	classID := uuid.NewString()
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", OrganizationID: "org-1", TermID: "term-1", StudentID: studentID, ClassID: classID, Status: models.EnrollmentStatusActive},
	}}
	svc := NewEnrollmentService(repo, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), requestContext(models.RoleAdmin), CreateEnrollmentRequest{
		StudentID: studentID,
		ClassID:   classID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCreateWithoutTerm(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())
	rc := requestContext(models.RoleAdmin)
	rc.TermID = ""

	_, err := svc.Create(context.Background(), rc, CreateEnrollmentRequest{
		StudentID: uuid.NewString(),
		ClassID:   uuid.NewString(),
	})
	assert.ErrorIs(t, err, appErrors.ErrNoCurrentTerm)
}

func TestEnrollmentServiceClose(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", OrganizationID: "org-1", Status: models.EnrollmentStatusActive},
	}}
	svc := NewEnrollmentService(repo, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	err := svc.Close(context.Background(), requestContext(models.RoleAdmin), "enr-1", models.EnrollmentStatusTransferred)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusTransferred, repo.closed["enr-1"])
}

func TestEnrollmentServiceCloseRejectsActiveStatus(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	err := svc.Close(context.Background(), requestContext(models.RoleAdmin), "enr-1", models.EnrollmentStatusActive)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
