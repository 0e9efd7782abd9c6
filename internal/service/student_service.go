package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, orgID string, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, orgID, id string) error
	ListWardIDs(ctx context.Context, orgID, guardianUserID string) ([]string, error)
	CreateGuardianLink(ctx context.Context, link *models.GuardianLink) error
}

type accessAuthorizer interface {
	Authorize(ctx context.Context, rc *models.RequestContext, req AccessRequest) error
}

type scopeChecker interface {
	CheckReferences(ctx context.Context, rc *models.RequestContext, refs ...models.Reference) error
	CheckTermScoped(ctx context.Context, rc *models.RequestContext, refs ...models.Reference) error
}

// CreateStudentRequest describes the payload for registering a student.
type CreateStudentRequest struct {
	AdmissionNo string     `json:"admission_no" validate:"required,max=32"`
	FullName    string     `json:"full_name" validate:"required,min=2,max=255"`
	BirthDate   *time.Time `json:"birth_date"`
}

// UpdateStudentRequest updates a student record.
type UpdateStudentRequest struct {
	FullName  string     `json:"full_name" validate:"required,min=2,max=255"`
	BirthDate *time.Time `json:"birth_date"`
	Active    *bool      `json:"active"`
}

// LinkGuardianRequest ties a guardian principal to a student.
type LinkGuardianRequest struct {
	GuardianUserID string `json:"guardian_user_id" validate:"required,uuid"`
	StudentID      string `json:"student_id" validate:"required,uuid"`
	Relationship   string `json:"relationship" validate:"required,max=32"`
}

// StudentService manages student records within the active organization.
type StudentService struct {
	repo      studentRepository
	access    accessAuthorizer
	guard     scopeChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates a new student service instance.
func NewStudentService(repo studentRepository, access accessAuthorizer, guard scopeChecker, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, access: access, guard: guard, validator: validate, logger: logger}
}

// List returns students of the active organization. Relationship-bound roles
// never see the full roster: a student's list is pinned to their own record,
// a guardian's to their wards, and a teacher must name a class they teach.
func (s *StudentService) List(ctx context.Context, rc *models.RequestContext, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if rc == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}

	req := AccessRequest{Entity: models.EntityStudent, Action: models.ActionList, TargetClassID: filter.ClassID}
	switch rc.Role {
	case models.RoleStudent:
		filter.IDs = []string{rc.PersonID}
		req.TargetStudentIDs = filter.IDs
	case models.RoleGuardian:
		wardIDs, err := s.repo.ListWardIDs(ctx, rc.OrganizationID, rc.PrincipalID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve wards")
		}
		filter.IDs = wardIDs
		req.TargetStudentIDs = wardIDs
	}

	if err := s.access.Authorize(ctx, rc, req); err != nil {
		return nil, nil, err
	}

	students, total, err := s.repo.List(ctx, rc.OrganizationID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student of the active organization.
func (s *StudentService) Get(ctx context.Context, rc *models.RequestContext, id string) (*models.Student, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionRead, TargetStudentID: id}); err != nil {
		return nil, err
	}

	student, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a student inside the active organization.
func (s *StudentService) Create(ctx context.Context, rc *models.RequestContext, req CreateStudentRequest) (*models.Student, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionCreate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		OrganizationID: rc.OrganizationID,
		AdmissionNo:    req.AdmissionNo,
		FullName:       req.FullName,
		BirthDate:      req.BirthDate,
		Active:         true,
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies a student record.
func (s *StudentService) Update(ctx context.Context, rc *models.RequestContext, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionUpdate, TargetStudentID: id}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student.FullName = req.FullName
	student.BirthDate = req.BirthDate
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate soft-removes a student from the active organization.
func (s *StudentService) Deactivate(ctx context.Context, rc *models.RequestContext, id string) error {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionDelete, TargetStudentID: id}); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, rc.OrganizationID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

// LinkGuardian ties a guardian principal to a ward. The scope guard verifies
// the student belongs to the active organization before the link is written.
func (s *StudentService) LinkGuardian(ctx context.Context, rc *models.RequestContext, req LinkGuardianRequest) (*models.GuardianLink, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityStudent, Action: models.ActionUpdate, TargetStudentID: req.StudentID}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid guardian link payload")
	}

	if err := s.guard.CheckReferences(ctx, rc, models.Reference{Kind: models.RefStudent, ID: req.StudentID}); err != nil {
		return nil, err
	}

	link := &models.GuardianLink{
		OrganizationID: rc.OrganizationID,
		GuardianUserID: req.GuardianUserID,
		StudentID:      req.StudentID,
		Relationship:   req.Relationship,
	}

	if err := s.repo.CreateGuardianLink(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link guardian")
	}
	return link, nil
}
