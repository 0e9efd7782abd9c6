package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, orgID string, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Deactivate(ctx context.Context, orgID, id string) error
}

type teachingAssignmentRepository interface {
	ListByTeacher(ctx context.Context, orgID, termID, teacherUserID string) ([]models.TeachingAssignment, error)
	Create(ctx context.Context, assignment *models.TeachingAssignment) error
	Delete(ctx context.Context, orgID, id string) error
}

// CreateClassRequest describes the payload for creating a class.
type CreateClassRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=64"`
	Level string `json:"level" validate:"required,max=32"`
}

// UpdateClassRequest updates a class record.
type UpdateClassRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=64"`
	Level  string `json:"level" validate:"required,max=32"`
	Active *bool  `json:"active"`
}

// AssignTeacherRequest maps a teacher to a class for the active term.
type AssignTeacherRequest struct {
	TeacherUserID string `json:"teacher_user_id" validate:"required,uuid"`
	ClassID       string `json:"class_id" validate:"required,uuid"`
	Subject       string `json:"subject" validate:"required,max=64"`
}

// ClassService manages classes and teaching assignments.
type ClassService struct {
	repo      classRepository
	teaching  teachingAssignmentRepository
	access    accessAuthorizer
	guard     scopeChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService creates a new class service instance.
func NewClassService(repo classRepository, teaching teachingAssignmentRepository, access accessAuthorizer, guard scopeChecker, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, teaching: teaching, access: access, guard: guard, validator: validate, logger: logger}
}

// List returns classes of the active organization.
func (s *ClassService) List(ctx context.Context, rc *models.RequestContext, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityClass, Action: models.ActionList}); err != nil {
		return nil, nil, err
	}

	classes, total, err := s.repo.List(ctx, rc.OrganizationID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one class of the active organization.
func (s *ClassService) Get(ctx context.Context, rc *models.RequestContext, id string) (*models.Class, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityClass, Action: models.ActionRead, TargetClassID: id}); err != nil {
		return nil, err
	}

	class, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create adds a class to the active organization.
func (s *ClassService) Create(ctx context.Context, rc *models.RequestContext, req CreateClassRequest) (*models.Class, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityClass, Action: models.ActionCreate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class := &models.Class{
		OrganizationID: rc.OrganizationID,
		Name:           req.Name,
		Level:          req.Level,
		Active:         true,
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies a class record.
func (s *ClassService) Update(ctx context.Context, rc *models.RequestContext, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityClass, Action: models.ActionUpdate, TargetClassID: id}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	class.Name = req.Name
	class.Level = req.Level
	if req.Active != nil {
		class.Active = *req.Active
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Deactivate retires a class.
func (s *ClassService) Deactivate(ctx context.Context, rc *models.RequestContext, id string) error {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityClass, Action: models.ActionDelete, TargetClassID: id}); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, rc.OrganizationID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate class")
	}
	return nil
}

// MyAssignments lists the caller's teaching assignments for the active term.
func (s *ClassService) MyAssignments(ctx context.Context, rc *models.RequestContext) ([]models.TeachingAssignment, error) {
	if rc.TermID == "" {
		return nil, appErrors.ErrNoCurrentTerm
	}
	assignments, err := s.teaching.ListByTeacher(ctx, rc.OrganizationID, rc.TermID, rc.PrincipalID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teaching assignments")
	}
	return assignments, nil
}

// AssignTeacher maps a teacher to a class for the active term. Both the class
// reference and the term binding go through the scope guard.
func (s *ClassService) AssignTeacher(ctx context.Context, rc *models.RequestContext, req AssignTeacherRequest) (*models.TeachingAssignment, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityClass, Action: models.ActionUpdate, TargetClassID: req.ClassID}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teaching assignment payload")
	}

	if err := s.guard.CheckReferences(ctx, rc, models.Reference{Kind: models.RefClass, ID: req.ClassID}); err != nil {
		return nil, err
	}
	if rc.TermID == "" {
		return nil, appErrors.ErrNoCurrentTerm
	}

	assignment := &models.TeachingAssignment{
		OrganizationID: rc.OrganizationID,
		TermID:         rc.TermID,
		TeacherUserID:  req.TeacherUserID,
		ClassID:        req.ClassID,
		Subject:        req.Subject,
	}

	if err := s.teaching.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teaching assignment")
	}
	return assignment, nil
}

// UnassignTeacher removes a teaching assignment.
func (s *ClassService) UnassignTeacher(ctx context.Context, rc *models.RequestContext, assignmentID string) error {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityClass, Action: models.ActionUpdate}); err != nil {
		return err
	}
	if err := s.teaching.Delete(ctx, rc.OrganizationID, assignmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teaching assignment")
	}
	return nil
}
