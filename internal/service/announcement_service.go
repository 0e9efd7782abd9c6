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

type announcementRepository interface {
	List(ctx context.Context, orgID string, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, orgID, id string) error
}

// CreateAnnouncementRequest publishes a notice to the active organization.
type CreateAnnouncementRequest struct {
	Title      string `json:"title" validate:"required,min=2,max=255"`
	Body       string `json:"body" validate:"required"`
	TermScoped bool   `json:"term_scoped"`
	PublishNow bool   `json:"publish_now"`
}

// AnnouncementService manages organization-scoped notices.
type AnnouncementService struct {
	repo      announcementRepository
	access    accessAuthorizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService creates a new announcement service instance.
func NewAnnouncementService(repo announcementRepository, access accessAuthorizer, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, access: access, validator: validate, logger: logger}
}

// List returns announcements of the active organization. Non-staff callers
// see published notices only.
func (s *AnnouncementService) List(ctx context.Context, rc *models.RequestContext, filter models.AnnouncementFilter) ([]models.Announcement, *models.Pagination, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityAnnouncement, Action: models.ActionList}); err != nil {
		return nil, nil, err
	}

	if rc.Role != models.RolePlatformAdmin && rc.Role != models.RoleOwner && rc.Role != models.RoleAdmin {
		filter.PublishedOnly = true
	}

	announcements, total, err := s.repo.List(ctx, rc.OrganizationID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return announcements, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one announcement of the active organization.
func (s *AnnouncementService) Get(ctx context.Context, rc *models.RequestContext, id string) (*models.Announcement, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityAnnouncement, Action: models.ActionRead}); err != nil {
		return nil, err
	}

	announcement, err := s.repo.FindByID(ctx, rc.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

// Create publishes a notice. Term-scoped notices require a resolved term.
func (s *AnnouncementService) Create(ctx context.Context, rc *models.RequestContext, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityAnnouncement, Action: models.ActionCreate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement := &models.Announcement{
		OrganizationID: rc.OrganizationID,
		Title:          req.Title,
		Body:           req.Body,
		AuthorUserID:   rc.PrincipalID,
	}

	if req.TermScoped {
		if rc.TermID == "" {
			return nil, appErrors.ErrNoCurrentTerm
		}
		termID := rc.TermID
		announcement.TermID = &termID
	}
	if req.PublishNow {
		now := time.Now().UTC()
		announcement.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Delete removes a notice.
func (s *AnnouncementService) Delete(ctx context.Context, rc *models.RequestContext, id string) error {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityAnnouncement, Action: models.ActionDelete}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, rc.OrganizationID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}
