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

// EnrollmentRepository handles persistence for enrollments, scoped by
// organization and term.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository instantiates an enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = "id, organization_id, term_id, student_id, class_id, joined_at, left_at, status"

// List returns enrollments within one organization and term.
func (r *EnrollmentRepository) List(ctx context.Context, orgID, termID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := "FROM enrollments WHERE organization_id = $1 AND term_id = $2"
	args := []interface{}{orgID, termID}
	var conditions []string

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"joined_at": true,
		"status":    true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "joined_at"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", enrollmentColumns, base, sortBy, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	return enrollments, total, nil
}

// FindByID loads an enrollment scoped to the organization.
func (r *EnrollmentRepository) FindByID(ctx context.Context, orgID, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1 AND organization_id = $2", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, orgID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveByStudent returns active enrollments of a student within a term.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, orgID, termID, studentID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE student_id = $1 AND organization_id = $2 AND term_id = $3 AND status = $4", enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, orgID, termID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// Create inserts a new enrollment stamped with organization and term.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.JoinedAt.IsZero() {
		enrollment.JoinedAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}

	const query = `INSERT INTO enrollments (id, organization_id, term_id, student_id, class_id, joined_at, left_at, status) VALUES (:id, :organization_id, :term_id, :student_id, :class_id, :joined_at, :left_at, :status)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus transitions an enrollment's lifecycle state.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, orgID, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $3, left_at = $4 WHERE id = $1 AND organization_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID, status, leftAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}
