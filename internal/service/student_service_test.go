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

type mockStudentRepo struct {
	students    map[string]models.Student
	wards       []string
	links       []models.GuardianLink
	deactivated []string
}

func (m *mockStudentRepo) List(ctx context.Context, orgID string, filter models.StudentFilter) ([]models.Student, int, error) {
	allowed := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		allowed[id] = true
	}
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		if s.OrganizationID != orgID {
			continue
		}
		if len(filter.IDs) > 0 && !allowed[s.ID] {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) ListWardIDs(ctx context.Context, orgID, guardianUserID string) ([]string, error) {
	return m.wards, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, orgID, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok && s.OrganizationID == orgID {
		found := s
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, orgID, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockStudentRepo) CreateGuardianLink(ctx context.Context, link *models.GuardianLink) error {
	m.links = append(m.links, *link)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), requestContext(models.RoleAdmin), CreateStudentRequest{
		AdmissionNo: "A-001",
		FullName:    "Jane Roe",
	})
	require.NoError(t, err)
	assert.Equal(t, "org-1", student.OrganizationID)
	assert.True(t, student.Active)
}

func TestStudentServiceGetOutsideOrganizationHidden(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"student-x": {ID: "student-x", OrganizationID: "org-2", FullName: "Foreign"},
	}}
	svc := NewStudentService(repo, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), requestContext(models.RoleAdmin), "student-x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceListDeniedByAccess(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, &stubAccess{denied: true}, &stubGuard{}, validator.New(), zap.NewNop())

	_, _, err := svc.List(context.Background(), requestContext(models.RoleGuardian), models.StudentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}

// A student listing the roster with no filter must see only their own record,
// never the organization's roster.
func TestStudentServiceListStudentPinnedToSelf(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"stu-self":  {ID: "stu-self", OrganizationID: "org-1", FullName: "Self"},
		"stu-other": {ID: "stu-other", OrganizationID: "org-1", FullName: "Other"},
	}}
	access := &stubAccess{}
	svc := NewStudentService(repo, access, &stubGuard{}, validator.New(), zap.NewNop())

	rc := requestContext(models.RoleStudent)
	rc.PersonID = "stu-self"
	students, _, err := svc.List(context.Background(), rc, models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "stu-self", students[0].ID)
	assert.Equal(t, []string{"stu-self"}, access.last.TargetStudentIDs)
}

func TestStudentServiceListGuardianPinnedToWards(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]models.Student{
			"stu-1": {ID: "stu-1", OrganizationID: "org-1", FullName: "Ward"},
			"stu-2": {ID: "stu-2", OrganizationID: "org-1", FullName: "Stranger"},
		},
		wards: []string{"stu-1"},
	}
	access := &stubAccess{}
	svc := NewStudentService(repo, access, &stubGuard{}, validator.New(), zap.NewNop())

	students, _, err := svc.List(context.Background(), requestContext(models.RoleGuardian), models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "stu-1", students[0].ID)
	assert.Equal(t, []string{"stu-1"}, access.last.TargetStudentIDs)
}

// The full stack check: with the real access evaluator an unassigned teacher
// listing students gets a denial, not the roster.
func TestStudentServiceListTeacherWithoutClassDenied(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", OrganizationID: "org-1", FullName: "Someone"},
	}}
	access := NewAccessService(&mockTeachingReader{}, &mockWardReader{}, zap.NewNop())
	svc := NewStudentService(repo, access, &stubGuard{}, validator.New(), zap.NewNop())

	_, _, err := svc.List(context.Background(), requestContext(models.RoleTeacher), models.StudentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}

func TestStudentServiceLinkGuardian(t *testing.T) {
	repo := &mockStudentRepo{}
	guard := &stubGuard{}
	svc := NewStudentService(repo, &stubAccess{}, guard, validator.New(), zap.NewNop())

	link, err := svc.LinkGuardian(context.Background(), requestContext(models.RoleAdmin), LinkGuardianRequest{
		GuardianUserID: uuid.NewString(),
		StudentID:      uuid.NewString(),
		Relationship:   "mother",
	})
	require.NoError(t, err)
	assert.Equal(t, "org-1", link.OrganizationID)
	require.Len(t, guard.checked, 1)
	assert.Equal(t, models.RefStudent, guard.checked[0].Kind)
}

func TestStudentServiceLinkGuardianForeignStudent(t *testing.T) {
	repo := &mockStudentRepo{}
	guard := &stubGuard{refErr: appErrors.ErrCrossTenantReference}
	svc := NewStudentService(repo, &stubAccess{}, guard, validator.New(), zap.NewNop())

	_, err := svc.LinkGuardian(context.Background(), requestContext(models.RoleAdmin), LinkGuardianRequest{
		GuardianUserID: uuid.NewString(),
		StudentID:      uuid.NewString(),
		Relationship:   "father",
	})
	assert.ErrorIs(t, err, appErrors.ErrCrossTenantReference)
	assert.Empty(t, repo.links)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, &stubAccess{}, &stubGuard{}, validator.New(), zap.NewNop())

	err := svc.Deactivate(context.Background(), requestContext(models.RoleAdmin), "student-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1"}, repo.deactivated)
}
