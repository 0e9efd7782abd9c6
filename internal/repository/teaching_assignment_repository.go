package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
)

// TeachingAssignmentRepository stores the teacher-to-class relation the
// access service narrows teacher reads with.
type TeachingAssignmentRepository struct {
	db *sqlx.DB
}

// NewTeachingAssignmentRepository instantiates the repository.
func NewTeachingAssignmentRepository(db *sqlx.DB) *TeachingAssignmentRepository {
	return &TeachingAssignmentRepository{db: db}
}

// ListByTeacher returns assignments of a teacher within one term.
func (r *TeachingAssignmentRepository) ListByTeacher(ctx context.Context, orgID, termID, teacherUserID string) ([]models.TeachingAssignment, error) {
	const query = `SELECT id, organization_id, term_id, teacher_user_id, class_id, subject, created_at FROM teaching_assignments WHERE teacher_user_id = $1 AND organization_id = $2 AND term_id = $3`
	var assignments []models.TeachingAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, teacherUserID, orgID, termID); err != nil {
		return nil, fmt.Errorf("list teaching assignments: %w", err)
	}
	return assignments, nil
}

// TeachesClass reports whether the teacher is assigned to the class in the
// given term.
func (r *TeachingAssignmentRepository) TeachesClass(ctx context.Context, orgID, termID, teacherUserID, classID string) (bool, error) {
	const query = `SELECT 1 FROM teaching_assignments WHERE teacher_user_id = $1 AND class_id = $2 AND organization_id = $3 AND term_id = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherUserID, classID, orgID, termID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teaches class: %w", err)
	}
	return true, nil
}

// TeachesStudent reports whether the teacher is assigned to any class the
// student is enrolled in for the given term.
func (r *TeachingAssignmentRepository) TeachesStudent(ctx context.Context, orgID, termID, teacherUserID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM teaching_assignments ta JOIN enrollments e ON e.class_id = ta.class_id AND e.term_id = ta.term_id WHERE ta.teacher_user_id = $1 AND e.student_id = $2 AND ta.organization_id = $3 AND ta.term_id = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherUserID, studentID, orgID, termID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teaches student: %w", err)
	}
	return true, nil
}

// Create inserts a new teaching assignment.
func (r *TeachingAssignmentRepository) Create(ctx context.Context, assignment *models.TeachingAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teaching_assignments (id, organization_id, term_id, teacher_user_id, class_id, subject, created_at) VALUES (:id, :organization_id, :term_id, :teacher_user_id, :class_id, :subject, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create teaching assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment within the organization.
func (r *TeachingAssignmentRepository) Delete(ctx context.Context, orgID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teaching_assignments WHERE id = $1 AND organization_id = $2`, id, orgID); err != nil {
		return fmt.Errorf("delete teaching assignment: %w", err)
	}
	return nil
}
