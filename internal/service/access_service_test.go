package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type mockTeachingReader struct {
	classes  map[string]bool
	students map[string]bool
}

func (m *mockTeachingReader) TeachesClass(ctx context.Context, orgID, termID, teacherUserID, classID string) (bool, error) {
	return m.classes[classID], nil
}

func (m *mockTeachingReader) TeachesStudent(ctx context.Context, orgID, termID, teacherUserID, studentID string) (bool, error) {
	return m.students[studentID], nil
}

type mockWardReader struct {
	wards []string
}

func (m *mockWardReader) ListWardIDs(ctx context.Context, orgID, guardianUserID string) ([]string, error) {
	return m.wards, nil
}

func requestContext(role models.UserRole) *models.RequestContext {
	return &models.RequestContext{
		OrganizationID: "org-1",
		TermID:         "term-1",
		PrincipalID:    "user-1",
		Role:           role,
	}
}

func TestAuthorizeMatrix(t *testing.T) {
	svc := NewAccessService(&mockTeachingReader{}, &mockWardReader{}, zap.NewNop())

	cases := []struct {
		name    string
		role    models.UserRole
		entity  models.EntityType
		action  models.Action
		allowed bool
	}{
		{"admin creates enrollment", models.RoleAdmin, models.EntityEnrollment, models.ActionCreate, true},
		{"admin cannot create term", models.RoleAdmin, models.EntityTerm, models.ActionCreate, false},
		{"owner creates term", models.RoleOwner, models.EntityTerm, models.ActionCreate, true},
		{"owner cannot delete organization", models.RoleOwner, models.EntityOrganization, models.ActionDelete, false},
		{"teacher reads class", models.RoleTeacher, models.EntityClass, models.ActionRead, true},
		{"teacher cannot touch fees", models.RoleTeacher, models.EntityFeeStructure, models.ActionRead, false},
		{"student reads grade", models.RoleStudent, models.EntityGrade, models.ActionRead, true},
		{"student cannot write grade", models.RoleStudent, models.EntityGrade, models.ActionCreate, false},
		{"guardian records payment", models.RoleGuardian, models.EntityFeePayment, models.ActionCreate, true},
		{"guardian cannot list staff", models.RoleGuardian, models.EntityStaff, models.ActionList, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(context.Background(), requestContext(tc.role), AccessRequest{Entity: tc.entity, Action: tc.action})
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
			}
		})
	}
}

func TestAuthorizeTeacherNarrowing(t *testing.T) {
	teaching := &mockTeachingReader{classes: map[string]bool{"class-1": true}, students: map[string]bool{"student-1": true}}
	svc := NewAccessService(teaching, &mockWardReader{}, zap.NewNop())
	rc := requestContext(models.RoleTeacher)

	err := svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityGrade, Action: models.ActionCreate, TargetClassID: "class-1"})
	assert.NoError(t, err)

	err = svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityGrade, Action: models.ActionCreate, TargetClassID: "class-2"})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	err = svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionRead, TargetStudentID: "student-1"})
	assert.NoError(t, err)

	err = svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionRead, TargetStudentID: "student-2"})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}

func TestAuthorizeStudentNarrowing(t *testing.T) {
	svc := NewAccessService(&mockTeachingReader{}, &mockWardReader{}, zap.NewNop())
	rc := requestContext(models.RoleStudent)
	rc.PersonID = "student-1"

	err := svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityGrade, Action: models.ActionRead, TargetStudentID: "student-1"})
	assert.NoError(t, err)

	err = svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityGrade, Action: models.ActionRead, TargetStudentID: "student-2"})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}

func TestAuthorizeGuardianNarrowing(t *testing.T) {
	svc := NewAccessService(&mockTeachingReader{}, &mockWardReader{wards: []string{"student-1"}}, zap.NewNop())
	rc := requestContext(models.RoleGuardian)

	err := svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityGrade, Action: models.ActionRead, TargetStudentID: "student-1"})
	assert.NoError(t, err)

	err = svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityGrade, Action: models.ActionRead, TargetStudentID: "student-2"})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}

// An unfiltered list from a relationship-bound role would enumerate the
// organization; the evaluator denies it outright.
func TestAuthorizeUnfilteredListDenied(t *testing.T) {
	teaching := &mockTeachingReader{classes: map[string]bool{"class-1": true}}
	svc := NewAccessService(teaching, &mockWardReader{wards: []string{"student-1"}}, zap.NewNop())

	err := svc.Authorize(context.Background(), requestContext(models.RoleTeacher), AccessRequest{Entity: models.EntityGrade, Action: models.ActionList})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	err = svc.Authorize(context.Background(), requestContext(models.RoleStudent), AccessRequest{Entity: models.EntityStudent, Action: models.ActionList})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	err = svc.Authorize(context.Background(), requestContext(models.RoleGuardian), AccessRequest{Entity: models.EntityEnrollment, Action: models.ActionList})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	// The same list passes once it names a relationship the evaluator can
	// verify.
	err = svc.Authorize(context.Background(), requestContext(models.RoleTeacher), AccessRequest{Entity: models.EntityGrade, Action: models.ActionList, TargetClassID: "class-1"})
	assert.NoError(t, err)
}

func TestAuthorizePinnedListTargets(t *testing.T) {
	svc := NewAccessService(&mockTeachingReader{}, &mockWardReader{wards: []string{"student-1", "student-2"}}, zap.NewNop())

	rc := requestContext(models.RoleStudent)
	rc.PersonID = "student-1"
	err := svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionList, TargetStudentIDs: []string{"student-1"}})
	assert.NoError(t, err)

	err = svc.Authorize(context.Background(), rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionList, TargetStudentIDs: []string{"student-1", "student-9"}})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	guardian := requestContext(models.RoleGuardian)
	err = svc.Authorize(context.Background(), guardian, AccessRequest{Entity: models.EntityStudent, Action: models.ActionList, TargetStudentIDs: []string{"student-1", "student-2"}})
	assert.NoError(t, err)

	err = svc.Authorize(context.Background(), guardian, AccessRequest{Entity: models.EntityStudent, Action: models.ActionList, TargetStudentIDs: []string{"student-3"}})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
}

// Matrix denials and narrowing denials must be the same error value so a
// caller cannot use the distinction to probe whether a record exists.
func TestAuthorizeDenialsIndistinguishable(t *testing.T) {
	svc := NewAccessService(&mockTeachingReader{}, &mockWardReader{}, zap.NewNop())

	matrixDenial := svc.Authorize(context.Background(), requestContext(models.RoleStudent), AccessRequest{Entity: models.EntityGrade, Action: models.ActionCreate})
	narrowDenial := svc.Authorize(context.Background(), requestContext(models.RoleTeacher), AccessRequest{Entity: models.EntityGrade, Action: models.ActionCreate, TargetClassID: "class-x"})

	assert.Equal(t, matrixDenial, narrowDenial)
}

func TestAuthorizeNilContext(t *testing.T) {
	svc := NewAccessService(&mockTeachingReader{}, &mockWardReader{}, zap.NewNop())

	err := svc.Authorize(context.Background(), nil, AccessRequest{Entity: models.EntityGrade, Action: models.ActionRead})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
