package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
)

// AnnouncementRepository handles persistence for announcements, scoped by
// organization.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository instantiates an announcement repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

const announcementColumns = "id, organization_id, term_id, title, body, author_user_id, published_at, created_at, updated_at"

// List returns announcements of one organization.
func (r *AnnouncementRepository) List(ctx context.Context, orgID string, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	base := "FROM announcements WHERE organization_id = $1"
	args := []interface{}{orgID}
	var conditions []string

	if filter.PublishedOnly {
		conditions = append(conditions, "published_at IS NOT NULL")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"published_at": true,
		"created_at":   true,
		"title":        true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", announcementColumns, base, sortBy, order, size, offset)

	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}

	return announcements, total, nil
}

// FindByID loads an announcement scoped to the organization.
func (r *AnnouncementRepository) FindByID(ctx context.Context, orgID, id string) (*models.Announcement, error) {
	query := fmt.Sprintf("SELECT %s FROM announcements WHERE id = $1 AND organization_id = $2", announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id, orgID); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Create inserts a new announcement stamped with the organization id.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	const query = `INSERT INTO announcements (id, organization_id, term_id, title, body, author_user_id, published_at, created_at, updated_at) VALUES (:id, :organization_id, :term_id, :title, :body, :author_user_id, :published_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Delete removes an announcement within the organization.
func (r *AnnouncementRepository) Delete(ctx context.Context, orgID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1 AND organization_id = $2`, id, orgID); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}
