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

type mockGradeRepo struct {
	grades     map[string]models.Grade
	updated    []string
	deleted    []string
	lastFilter models.GradeFilter
}

func (m *mockGradeRepo) List(ctx context.Context, orgID, termID string, filter models.GradeFilter) ([]models.Grade, int, error) {
	m.lastFilter = filter
	out := make([]models.Grade, 0, len(m.grades))
	for _, g := range m.grades {
		out = append(out, g)
	}
	return out, len(out), nil
}

func (m *mockGradeRepo) FindByID(ctx context.Context, orgID, id string) (*models.Grade, error) {
	if g, ok := m.grades[id]; ok && g.OrganizationID == orgID {
		found := g
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) Create(ctx context.Context, grade *models.Grade) error {
	if m.grades == nil {
		m.grades = make(map[string]models.Grade)
	}
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	m.grades[grade.ID] = *grade
	return nil
}

func (m *mockGradeRepo) UpdateScore(ctx context.Context, orgID, id string, score, maxScore float64, recordedBy string) error {
	m.updated = append(m.updated, id)
	return nil
}

func (m *mockGradeRepo) Delete(ctx context.Context, orgID, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockEnrollmentFinder struct {
	enrollments map[string]models.Enrollment
}

func (m *mockEnrollmentFinder) FindByID(ctx context.Context, orgID, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok && e.OrganizationID == orgID {
		found := e
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

// A student's unfiltered grade list is pinned to their own record before the
// query runs; an unassigned teacher's unfiltered list is denied outright.
func TestGradeServiceListPinnedAndDenied(t *testing.T) {
	repo := &mockGradeRepo{}
	svc := NewGradeService(repo, &mockEnrollmentFinder{}, NewAccessService(&mockTeachingReader{}, &mockWardReader{}, zap.NewNop()), &stubGuard{}, validator.New(), zap.NewNop())

	rc := requestContext(models.RoleStudent)
	rc.PersonID = "stu-self"
	_, _, err := svc.List(context.Background(), rc, models.GradeFilter{})
	require.NoError(t, err)
	assert.Equal(t, "stu-self", repo.lastFilter.StudentID)

	_, _, err = svc.List(context.Background(), requestContext(models.RoleTeacher), models.GradeFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	_, _, err = svc.List(context.Background(), requestContext(models.RoleGuardian), models.GradeFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}

func TestGradeServiceCreateInheritsFromEnrollment(t *testing.T) {
	enrollmentID := uuid.NewString()
	finder := &mockEnrollmentFinder{enrollments: map[string]models.Enrollment{
		enrollmentID: {
			ID:             enrollmentID,
			OrganizationID: "org-1",
			TermID:         "term-1",
			StudentID:      "student-7",
			ClassID:        "class-3",
		},
	}}
	repo := &mockGradeRepo{}
	svc := NewGradeService(repo, finder, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	grade, err := svc.Create(context.Background(), requestContext(models.RoleTeacher), CreateGradeRequest{
		EnrollmentID: enrollmentID,
		Subject:      "Mathematics",
		Score:        85,
		MaxScore:     100,
	})
	require.NoError(t, err)
	assert.Equal(t, "org-1", grade.OrganizationID)
	assert.Equal(t, "term-1", grade.TermID)
	assert.Equal(t, "student-7", grade.StudentID)
	assert.Equal(t, "class-3", grade.ClassID)
	assert.Equal(t, "user-1", grade.RecordedBy)
}

func TestGradeServiceCreateScoreAboveMax(t *testing.T) {
	svc := NewGradeService(&mockGradeRepo{}, &mockEnrollmentFinder{}, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), requestContext(models.RoleTeacher), CreateGradeRequest{
		EnrollmentID: uuid.NewString(),
		Subject:      "Mathematics",
		Score:        110,
		MaxScore:     100,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceCreateForeignEnrollment(t *testing.T) {
	guard := &stubGuard{termErr: appErrors.ErrTermOrganizationMismatch}
	svc := NewGradeService(&mockGradeRepo{}, &mockEnrollmentFinder{}, &stubAccess{}, guard, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), requestContext(models.RoleTeacher), CreateGradeRequest{
		EnrollmentID: uuid.NewString(),
		Subject:      "Mathematics",
		Score:        50,
		MaxScore:     100,
	})
	assert.ErrorIs(t, err, appErrors.ErrTermOrganizationMismatch)
}

func TestGradeServiceCreateDeniedByNarrowing(t *testing.T) {
	enrollmentID := uuid.NewString()
	finder := &mockEnrollmentFinder{enrollments: map[string]models.Enrollment{
		enrollmentID: {ID: enrollmentID, OrganizationID: "org-1", TermID: "term-1", StudentID: "student-7", ClassID: "class-3"},
	}}
	access := &stubAccess{denied: true}
	svc := NewGradeService(&mockGradeRepo{}, finder, access, &stubGuard{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), requestContext(models.RoleTeacher), CreateGradeRequest{
		EnrollmentID: enrollmentID,
		Subject:      "Mathematics",
		Score:        50,
		MaxScore:     100,
	})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
	assert.Equal(t, "class-3", access.last.TargetClassID)
}

func TestGradeServiceUpdateScore(t *testing.T) {
	repo := &mockGradeRepo{grades: map[string]models.Grade{
		"grade-1": {ID: "grade-1", OrganizationID: "org-1", StudentID: "student-7", ClassID: "class-3"},
	}}
	svc := NewGradeService(repo, &mockEnrollmentFinder{}, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	err := svc.UpdateScore(context.Background(), requestContext(models.RoleTeacher), "grade-1", UpdateGradeRequest{Score: 90, MaxScore: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"grade-1"}, repo.updated)
}
