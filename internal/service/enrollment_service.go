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

type enrollmentRepository interface {
	List(ctx context.Context, orgID, termID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.Enrollment, error)
	ListActiveByStudent(ctx context.Context, orgID, termID, studentID string) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, orgID, id string, status models.EnrollmentStatus, leftAt *time.Time) error
}

// CreateEnrollmentRequest registers a student into a class for the active term.
type CreateEnrollmentRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	ClassID   string `json:"class_id" validate:"required,uuid"`
}

// EnrollmentService manages term-scoped enrollments. Every write pins the
// organization and term from the request context onto the row, never from the
// payload.
type EnrollmentService struct {
	repo      enrollmentRepository
	access    accessAuthorizer
	guard     scopeChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService creates a new enrollment service instance.
func NewEnrollmentService(repo enrollmentRepository, access accessAuthorizer, guard scopeChecker, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, access: access, guard: guard, validator: validate, logger: logger}
}

// List returns enrollments for the active organization and term. A student's
// list is pinned to their own record; teachers and guardians must name a
// class or student the access service can verify a relationship for.
func (s *EnrollmentService) List(ctx context.Context, rc *models.RequestContext, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	if rc == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if rc.Role == models.RoleStudent && filter.StudentID == "" {
		filter.StudentID = rc.PersonID
	}
	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityEnrollment,
		Action:          models.ActionList,
		TargetStudentID: filter.StudentID,
		TargetClassID:   filter.ClassID,
	}); err != nil {
		return nil, nil, err
	}
	if rc.TermID == "" {
		return nil, nil, appErrors.ErrNoCurrentTerm
	}

	enrollments, total, err := s.repo.List(ctx, rc.OrganizationID, rc.TermID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one enrollment of the active organization.
func (s *EnrollmentService) Get(ctx context.Context, rc *models.RequestContext, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityEnrollment,
		Action:          models.ActionRead,
		TargetStudentID: enrollment.StudentID,
		TargetClassID:   enrollment.ClassID,
	}); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// Create enrolls a student into a class for the active term. The scope guard
// resolves both references to their owning organization first; one foreign
// row fails the write with a cross-tenant error.
func (s *EnrollmentService) Create(ctx context.Context, rc *models.RequestContext, req CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityEnrollment, Action: models.ActionCreate, TargetClassID: req.ClassID}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if rc.TermID == "" {
		return nil, appErrors.ErrNoCurrentTerm
	}

	if err := s.guard.CheckReferences(ctx, rc,
		models.Reference{Kind: models.RefStudent, ID: req.StudentID},
		models.Reference{Kind: models.RefClass, ID: req.ClassID},
	); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListActiveByStudent(ctx, rc.OrganizationID, rc.TermID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollments")
	}
	for _, e := range existing {
		if e.ClassID == req.ClassID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this class for the current term")
		}
	}

	enrollment := &models.Enrollment{
		OrganizationID: rc.OrganizationID,
		TermID:         rc.TermID,
		StudentID:      req.StudentID,
		ClassID:        req.ClassID,
		JoinedAt:       time.Now().UTC(),
		Status:         models.EnrollmentStatusActive,
	}

	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Close marks an enrollment as transferred or left.
func (s *EnrollmentService) Close(ctx context.Context, rc *models.RequestContext, id string, status models.EnrollmentStatus) error {
	if status != models.EnrollmentStatusTransferred && status != models.EnrollmentStatusLeft {
		return appErrors.Clone(appErrors.ErrValidation, "status must be TRANSFERRED or LEFT")
	}
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityEnrollment, Action: models.ActionUpdate}); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, rc.OrganizationID, id, status, &now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close enrollment")
	}
	return nil
}
