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

// ClassRepository handles persistence for classes, scoped by organization.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository instantiates a class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = "id, organization_id, name, level, active, created_at, updated_at"

// List returns classes of one organization matching provided filters.
func (r *ClassRepository) List(ctx context.Context, orgID string, filter models.ClassFilter) ([]models.Class, int, error) {
	base := "FROM classes WHERE organization_id = $1"
	args := []interface{}{orgID}
	var conditions []string

	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"level":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classColumns, base, sortBy, order, size, offset)

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// FindByID loads a class scoped to the organization.
func (r *ClassRepository) FindByID(ctx context.Context, orgID, id string) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE id = $1 AND organization_id = $2", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id, orgID); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create inserts a new class stamped with the organization id.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, organization_id, name, level, active, created_at, updated_at) VALUES (:id, :organization_id, :name, :level, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class within the organization.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, level = :level, active = :active, updated_at = :updated_at WHERE id = :id AND organization_id = :organization_id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Deactivate performs a soft delete.
func (r *ClassRepository) Deactivate(ctx context.Context, orgID, id string) error {
	const query = `UPDATE classes SET active = FALSE, updated_at = $3 WHERE id = $1 AND organization_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate class: %w", err)
	}
	return nil
}
