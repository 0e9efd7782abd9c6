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

// GradeRepository handles persistence for grades, scoped by organization and
// term on every access.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository instantiates a grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = "id, organization_id, term_id, enrollment_id, student_id, class_id, subject, score, max_score, recorded_by, created_at, updated_at"

// List returns grades within one organization and term.
func (r *GradeRepository) List(ctx context.Context, orgID, termID string, filter models.GradeFilter) ([]models.Grade, int, error) {
	base := "FROM grades WHERE organization_id = $1 AND term_id = $2"
	args := []interface{}{orgID, termID}
	var conditions []string

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"subject":    true,
		"score":      true,
		"created_at": true,
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", gradeColumns, base, sortBy, order, size, offset)

	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}

	return grades, total, nil
}

// FindByID loads a grade scoped to the organization.
func (r *GradeRepository) FindByID(ctx context.Context, orgID, id string) (*models.Grade, error) {
	query := fmt.Sprintf("SELECT %s FROM grades WHERE id = $1 AND organization_id = $2", gradeColumns)
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id, orgID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Create inserts a new grade stamped with organization and term.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now

	const query = `INSERT INTO grades (id, organization_id, term_id, enrollment_id, student_id, class_id, subject, score, max_score, recorded_by, created_at, updated_at) VALUES (:id, :organization_id, :term_id, :enrollment_id, :student_id, :class_id, :subject, :score, :max_score, :recorded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// UpdateScore modifies a grade's score within the organization.
func (r *GradeRepository) UpdateScore(ctx context.Context, orgID, id string, score, maxScore float64, recordedBy string) error {
	const query = `UPDATE grades SET score = $3, max_score = $4, recorded_by = $5, updated_at = $6 WHERE id = $1 AND organization_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID, score, maxScore, recordedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update grade score: %w", err)
	}
	return nil
}

// Delete removes a grade within the organization.
func (r *GradeRepository) Delete(ctx context.Context, orgID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1 AND organization_id = $2`, id, orgID); err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return nil
}
