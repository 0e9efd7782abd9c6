package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type organizationDirectory interface {
	List(ctx context.Context, filter models.OrganizationFilter) ([]models.Organization, int, error)
	FindByID(ctx context.Context, id string) (*models.Organization, error)
	FindBySelector(ctx context.Context, selector string) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
	Update(ctx context.Context, org *models.Organization) error
	BulkUpdateStatus(ctx context.Context, updates []models.OrganizationStatusUpdate) error
}

// CreateOrganizationRequest describes the payload for registering a school.
type CreateOrganizationRequest struct {
	Code string `json:"code" validate:"required,alphanum,min=2,max=32"`
	Name string `json:"name" validate:"required,min=2,max=255"`
}

// UpdateOrganizationRequest updates directory fields of a school.
type UpdateOrganizationRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Active   *bool  `json:"active"`
	Verified *bool  `json:"verified"`
}

// BulkOrganizationStatusRequest applies status changes to many schools at
// once, all-or-nothing.
type BulkOrganizationStatusRequest struct {
	Updates []models.OrganizationStatusUpdate `json:"updates" validate:"required,min=1,dive"`
}

// OrganizationService manages the platform-level organization directory.
// All operations here are platform-admin territory; route guards enforce
// that before requests reach this layer.
type OrganizationService struct {
	repo      organizationDirectory
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOrganizationService creates a new organization service instance.
func NewOrganizationService(repo organizationDirectory, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *OrganizationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizationService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns paginated organizations.
func (s *OrganizationService) List(ctx context.Context, filter models.OrganizationFilter) ([]models.Organization, *models.Pagination, error) {
	orgs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list organizations")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return orgs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one organization by id or code.
func (s *OrganizationService) Get(ctx context.Context, selector string) (*models.Organization, error) {
	org, err := s.repo.FindBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	return org, nil
}

// Create registers a new organization. New organizations start active and
// unverified.
func (s *OrganizationService) Create(ctx context.Context, req CreateOrganizationRequest) (*models.Organization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization payload")
	}

	org := &models.Organization{
		Code:   strings.ToUpper(req.Code),
		Name:   req.Name,
		Active: true,
	}

	if err := s.repo.Create(ctx, org); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create organization")
	}
	return org, nil
}

// Update modifies directory fields of an organization.
func (s *OrganizationService) Update(ctx context.Context, id string, req UpdateOrganizationRequest) (*models.Organization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization payload")
	}

	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}

	org.Name = req.Name
	if req.Active != nil {
		org.Active = *req.Active
	}
	if req.Verified != nil {
		org.Verified = *req.Verified
	}

	if err := s.repo.Update(ctx, org); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update organization")
	}
	return org, nil
}

// BulkUpdateStatus flips active or verified flags on many organizations in
// one transaction. An unknown id aborts the whole batch.
func (s *OrganizationService) BulkUpdateStatus(ctx context.Context, actorID string, req BulkOrganizationStatusRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk status payload")
	}

	for _, u := range req.Updates {
		if u.Active == nil && u.Verified == nil {
			return appErrors.Clone(appErrors.ErrValidation, "each update must set active or verified")
		}
	}

	if err := s.repo.BulkUpdateStatus(ctx, req.Updates); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply bulk status update")
	}

	if s.audit != nil {
		payload, _ := json.Marshal(req.Updates)
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &actorID,
			Action:    models.AuditActionBulkOrgStatus,
			Resource:  "organization",
			NewValues: payload,
		}); err != nil {
			s.logger.Warn("failed to record bulk status audit log", zap.Error(err))
		}
	}

	return nil
}
