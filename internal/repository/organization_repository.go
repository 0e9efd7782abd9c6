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

// OrganizationRepository handles persistence for the tenant directory.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository instantiates an organization repository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const organizationColumns = "id, code, name, active, verified, created_at, updated_at"

// List returns organizations matching provided filters.
func (r *OrganizationRepository) List(ctx context.Context, filter models.OrganizationFilter) ([]models.Organization, int, error) {
	base := "FROM organizations WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("verified = $%d", len(args)+1))
		args = append(args, *filter.Verified)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"code":       true,
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", organizationColumns, base, sortBy, order, size, offset)

	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}

	return orgs, total, nil
}

// FindByID loads an organization by identifier.
func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	query := fmt.Sprintf("SELECT %s FROM organizations WHERE id = $1", organizationColumns)
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, err
	}
	return &org, nil
}

// FindBySelector resolves an organization by id or human code. Route
// parameters and stored preferences carry either form.
func (r *OrganizationRepository) FindBySelector(ctx context.Context, selector string) (*models.Organization, error) {
	query := fmt.Sprintf("SELECT %s FROM organizations WHERE id = $1 OR code = $1 LIMIT 1", organizationColumns)
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, selector); err != nil {
		return nil, err
	}
	return &org, nil
}

// Create inserts a new organization record.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now

	const query = `INSERT INTO organizations (id, code, name, active, verified, created_at, updated_at) VALUES (:id, :code, :name, :active, :verified, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, org); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// Update modifies an existing organization.
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now().UTC()
	const query = `UPDATE organizations SET code = :code, name = :name, active = :active, verified = :verified, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, org); err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	return nil
}

// BulkUpdateStatus applies status flips to many organizations in one
// transaction. A missing organization fails the whole batch.
func (r *OrganizationRepository) BulkUpdateStatus(ctx context.Context, updates []models.OrganizationStatusUpdate) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk status tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, u := range updates {
		res, execErr := tx.ExecContext(ctx,
			`UPDATE organizations SET active = COALESCE($2, active), verified = COALESCE($3, verified), updated_at = $4 WHERE id = $1`,
			u.OrganizationID, u.Active, u.Verified, now)
		if execErr != nil {
			err = fmt.Errorf("bulk update organization %s: %w", u.OrganizationID, execErr)
			return err
		}
		affected, raErr := res.RowsAffected()
		if raErr != nil {
			err = fmt.Errorf("bulk update rows affected: %w", raErr)
			return err
		}
		if affected == 0 {
			err = fmt.Errorf("bulk update organization %s: no such organization", u.OrganizationID)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk status tx: %w", err)
	}
	return nil
}
