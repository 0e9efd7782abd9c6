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

type termRepository interface {
	List(ctx context.Context, orgID string, filter models.TermFilter) ([]models.Term, int, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindCurrent(ctx context.Context, orgID string) (*models.Term, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	Promote(ctx context.Context, orgID, termID, expectedCurrentID string) error
	Delete(ctx context.Context, orgID, id string) error
	CountEnrollments(ctx context.Context, id string) (int, error)
}

type promotionObserver interface {
	ObservePromotion(ctx context.Context, orgID string, promoted *models.Term)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateTermRequest describes payload for creating academic terms.
type CreateTermRequest struct {
	Name         string    `json:"name" validate:"required"`
	SessionLabel string    `json:"session_label" validate:"required"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
}

// UpdateTermRequest updates mutable fields on a term.
type UpdateTermRequest struct {
	Name         string    `json:"name" validate:"required"`
	SessionLabel string    `json:"session_label" validate:"required"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
	Active       *bool     `json:"active"`
}

// PromoteTermRequest promotes a term to current. ExpectedCurrentTermID is
// the current term the caller observed; a stale value means another
// promotion won the race and the caller must re-read and retry.
type PromoteTermRequest struct {
	TermID                string `json:"term_id" validate:"required"`
	ExpectedCurrentTermID string `json:"expected_current_term_id"`
}

// TermService orchestrates term registry workflows for one organization.
// Registry writes are owner and platform-admin operations; the capability
// table enforces that here rather than trusting route guards alone.
type TermService struct {
	repo      termRepository
	access    accessAuthorizer
	observer  promotionObserver
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, access accessAuthorizer, observer promotionObserver, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, access: access, observer: observer, audit: audit, validator: validate, logger: logger}
}

// List returns paginated terms of the context's organization.
func (s *TermService) List(ctx context.Context, rc *models.RequestContext, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, rc.OrganizationID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return terms, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a term by ID, verifying it belongs to the organization.
func (s *TermService) Get(ctx context.Context, rc *models.RequestContext, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.OrganizationID != rc.OrganizationID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
	}
	return term, nil
}

// GetCurrent returns the organization's current term.
func (s *TermService) GetCurrent(ctx context.Context, rc *models.RequestContext) (*models.Term, error) {
	term, err := s.repo.FindCurrent(ctx, rc.OrganizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoCurrentTerm
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}
	return term, nil
}

// Create adds an upcoming term to the organization's registry.
func (s *TermService) Create(ctx context.Context, rc *models.RequestContext, req CreateTermRequest) (*models.Term, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityTerm, Action: models.ActionCreate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	term := &models.Term{
		OrganizationID: rc.OrganizationID,
		Name:           req.Name,
		SessionLabel:   req.SessionLabel,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Active:         true,
	}

	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Update modifies a term record within the organization.
func (s *TermService) Update(ctx context.Context, rc *models.RequestContext, id string, req UpdateTermRequest) (*models.Term, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityTerm, Action: models.ActionUpdate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	term, err := s.Get(ctx, rc, id)
	if err != nil {
		return nil, err
	}

	term.Name = req.Name
	term.SessionLabel = req.SessionLabel
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	if req.Active != nil {
		term.Active = *req.Active
	}

	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

// Promote makes the requested term current for the organization. The
// repository transaction guarantees at most one current term; this layer
// verifies ownership, refreshes the current-term cache, and audits the
// transition. A lost race surfaces ErrTermPromotionConflict, which callers
// retry after re-reading current state.
func (s *TermService) Promote(ctx context.Context, rc *models.RequestContext, req PromoteTermRequest) (*models.Term, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityTerm, Action: models.ActionUpdate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promote payload")
	}

	term, err := s.repo.FindByID(ctx, req.TermID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.OrganizationID != rc.OrganizationID {
		return nil, appErrors.ErrTermOrganizationMismatch
	}
	if !term.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot promote an inactive term")
	}

	if err := s.repo.Promote(ctx, rc.OrganizationID, term.ID, req.ExpectedCurrentTermID); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote term")
	}

	term.IsCurrent = true
	if s.observer != nil {
		s.observer.ObservePromotion(ctx, rc.OrganizationID, term)
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:         &rc.PrincipalID,
			OrganizationID: &rc.OrganizationID,
			Action:         models.AuditActionTermPromotion,
			Resource:       "term",
			ResourceID:     &term.ID,
			NewValues:      []byte(`{"is_current":true}`),
		}); err != nil {
			s.logger.Warn("failed to record promotion audit log", zap.Error(err))
		}
	}

	return term, nil
}

// Delete removes a term when not current and without enrollments.
func (s *TermService) Delete(ctx context.Context, rc *models.RequestContext, id string) error {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityTerm, Action: models.ActionDelete}); err != nil {
		return err
	}
	term, err := s.Get(ctx, rc, id)
	if err != nil {
		return err
	}

	if term.IsCurrent {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot delete the current term")
	}

	count, err := s.repo.CountEnrollments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "term has enrollments associated")
	}

	if err := s.repo.Delete(ctx, rc.OrganizationID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	return nil
}
