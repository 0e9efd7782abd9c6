package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
)

// StudentRepository handles persistence for students and guardian links.
// Every query takes the resolved organization id and injects it into the
// WHERE clause; there is no way to read a student outside the caller's
// organization through this type.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository instantiates a student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = "id, organization_id, admission_no, full_name, birth_date, active, created_at, updated_at"

// List returns students of one organization matching provided filters.
func (r *StudentRepository) List(ctx context.Context, orgID string, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students WHERE organization_id = $1"
	args := []interface{}{orgID}
	var conditions []string

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR admission_no ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("id IN (SELECT student_id FROM enrollments WHERE class_id = $%d AND organization_id = $1)", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.IDs))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"full_name":    true,
		"admission_no": true,
		"created_at":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "full_name"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, sortBy, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	return students, total, nil
}

// FindByID loads a student scoped to the organization.
func (r *StudentRepository) FindByID(ctx context.Context, orgID, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1 AND organization_id = $2", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, orgID); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student stamped with the organization id.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	const query = `INSERT INTO students (id, organization_id, admission_no, full_name, birth_date, active, created_at, updated_at) VALUES (:id, :organization_id, :admission_no, :full_name, :birth_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies a student within the organization.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET admission_no = :admission_no, full_name = :full_name, birth_date = :birth_date, active = :active, updated_at = :updated_at WHERE id = :id AND organization_id = :organization_id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate performs a soft delete.
func (r *StudentRepository) Deactivate(ctx context.Context, orgID, id string) error {
	const query = `UPDATE students SET active = FALSE, updated_at = $3 WHERE id = $1 AND organization_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// ListWardIDs returns the student ids linked to a guardian principal.
func (r *StudentRepository) ListWardIDs(ctx context.Context, orgID, guardianUserID string) ([]string, error) {
	const query = `SELECT student_id FROM guardian_links WHERE guardian_user_id = $1 AND organization_id = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, guardianUserID, orgID); err != nil {
		return nil, fmt.Errorf("list ward ids: %w", err)
	}
	return ids, nil
}

// CreateGuardianLink links a guardian principal to a ward.
func (r *StudentRepository) CreateGuardianLink(ctx context.Context, link *models.GuardianLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO guardian_links (id, organization_id, guardian_user_id, student_id, relationship, created_at) VALUES (:id, :organization_id, :guardian_user_id, :student_id, :relationship, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create guardian link: %w", err)
	}
	return nil
}
