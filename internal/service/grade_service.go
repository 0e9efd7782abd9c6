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

type gradeRepository interface {
	List(ctx context.Context, orgID, termID string, filter models.GradeFilter) ([]models.Grade, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	UpdateScore(ctx context.Context, orgID, id string, score, maxScore float64, recordedBy string) error
	Delete(ctx context.Context, orgID, id string) error
}

type enrollmentFinder interface {
	FindByID(ctx context.Context, orgID, id string) (*models.Enrollment, error)
}

// CreateGradeRequest records a score against an enrollment.
type CreateGradeRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required,uuid"`
	Subject      string  `json:"subject" validate:"required,max=64"`
	Score        float64 `json:"score" validate:"gte=0"`
	MaxScore     float64 `json:"max_score" validate:"required,gt=0"`
}

// UpdateGradeRequest corrects a recorded score.
type UpdateGradeRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	MaxScore float64 `json:"max_score" validate:"required,gt=0"`
}

// GradeService manages grades. Grades inherit organization, term, student and
// class from the enrollment they point at, so the stored row can never
// disagree with its enrollment at write time.
type GradeService struct {
	repo        gradeRepository
	enrollments enrollmentFinder
	access      accessAuthorizer
	guard       scopeChecker
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService creates a new grade service instance.
func NewGradeService(repo gradeRepository, enrollments enrollmentFinder, access accessAuthorizer, guard scopeChecker, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, enrollments: enrollments, access: access, guard: guard, validator: validate, logger: logger}
}

// List returns grades for the active organization and term. A student's list
// is pinned to their own record; teachers and guardians must name a class or
// student the access service can verify a relationship for.
func (s *GradeService) List(ctx context.Context, rc *models.RequestContext, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	if rc == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if rc.Role == models.RoleStudent && filter.StudentID == "" {
		filter.StudentID = rc.PersonID
	}
	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityGrade,
		Action:          models.ActionList,
		TargetStudentID: filter.StudentID,
		TargetClassID:   filter.ClassID,
	}); err != nil {
		return nil, nil, err
	}
	if rc.TermID == "" {
		return nil, nil, appErrors.ErrNoCurrentTerm
	}

	grades, total, err := s.repo.List(ctx, rc.OrganizationID, rc.TermID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return grades, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one grade of the active organization.
func (s *GradeService) Get(ctx context.Context, rc *models.RequestContext, id string) (*models.Grade, error) {
	grade, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}

	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityGrade,
		Action:          models.ActionRead,
		TargetStudentID: grade.StudentID,
		TargetClassID:   grade.ClassID,
	}); err != nil {
		return nil, err
	}
	return grade, nil
}

// Create records a grade against an enrollment. The enrollment is loaded
// through the scoped repository and must belong to the active term.
func (s *GradeService) Create(ctx context.Context, rc *models.RequestContext, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score > req.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score cannot exceed max_score")
	}
	if rc.TermID == "" {
		return nil, appErrors.ErrNoCurrentTerm
	}

	if err := s.guard.CheckTermScoped(ctx, rc, models.Reference{Kind: models.RefEnrollment, ID: req.EnrollmentID}); err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindByID(ctx, rc.OrganizationID, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityGrade,
		Action:          models.ActionCreate,
		TargetStudentID: enrollment.StudentID,
		TargetClassID:   enrollment.ClassID,
	}); err != nil {
		return nil, err
	}

	grade := &models.Grade{
		OrganizationID: rc.OrganizationID,
		TermID:         enrollment.TermID,
		EnrollmentID:   enrollment.ID,
		StudentID:      enrollment.StudentID,
		ClassID:        enrollment.ClassID,
		Subject:        req.Subject,
		Score:          req.Score,
		MaxScore:       req.MaxScore,
		RecordedBy:     rc.PrincipalID,
	}

	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}
	return grade, nil
}

// UpdateScore corrects an existing grade.
func (s *GradeService) UpdateScore(ctx context.Context, rc *models.RequestContext, id string, req UpdateGradeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score > req.MaxScore {
		return appErrors.Clone(appErrors.ErrValidation, "score cannot exceed max_score")
	}

	grade, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}

	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityGrade,
		Action:          models.ActionUpdate,
		TargetStudentID: grade.StudentID,
		TargetClassID:   grade.ClassID,
	}); err != nil {
		return err
	}

	if err := s.repo.UpdateScore(ctx, rc.OrganizationID, id, req.Score, req.MaxScore, rc.PrincipalID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	return nil
}

// Delete removes a grade record.
func (s *GradeService) Delete(ctx context.Context, rc *models.RequestContext, id string) error {
	grade, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}

	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityGrade,
		Action:          models.ActionDelete,
		TargetStudentID: grade.StudentID,
		TargetClassID:   grade.ClassID,
	}); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, rc.OrganizationID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	return nil
}
