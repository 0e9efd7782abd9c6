package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
)

// ConsistencyRepository runs the read-only probes behind the consistency
// validator. One query per relationship class; each returns rows whose two
// sides disagree on organization or term. Nothing here mutates data.
type ConsistencyRepository struct {
	db *sqlx.DB
}

// NewConsistencyRepository instantiates a consistency repository.
func NewConsistencyRepository(db *sqlx.DB) *ConsistencyRepository {
	return &ConsistencyRepository{db: db}
}

var consistencyProbes = map[models.RelationshipClass]string{
	models.RelationGradeEnrollment: `
		SELECT g.id AS record_id, e.id AS related_id, g.organization_id AS record_org, e.organization_id AS related_org, '' AS record_term, '' AS related_term
		FROM grades g JOIN enrollments e ON e.id = g.enrollment_id
		WHERE g.organization_id <> e.organization_id`,
	models.RelationGradeTerm: `
		SELECT g.id AS record_id, e.id AS related_id, g.organization_id AS record_org, e.organization_id AS related_org, g.term_id AS record_term, e.term_id AS related_term
		FROM grades g JOIN enrollments e ON e.id = g.enrollment_id
		WHERE g.term_id <> e.term_id`,
	models.RelationFeeAssignmentClass: `
		SELECT fa.id AS record_id, c.id AS related_id, fa.organization_id AS record_org, c.organization_id AS related_org, '' AS record_term, '' AS related_term
		FROM fee_assignments fa JOIN classes c ON c.id = fa.class_id
		WHERE fa.class_id IS NOT NULL AND fa.organization_id <> c.organization_id`,
	models.RelationFeeAssignmentTerm: `
		SELECT fa.id AS record_id, t.id AS related_id, fa.organization_id AS record_org, t.organization_id AS related_org, fa.term_id AS record_term, t.id AS related_term
		FROM fee_assignments fa JOIN terms t ON t.id = fa.term_id
		WHERE fa.organization_id <> t.organization_id`,
	models.RelationEnrollmentClass: `
		SELECT e.id AS record_id, c.id AS related_id, e.organization_id AS record_org, c.organization_id AS related_org, '' AS record_term, '' AS related_term
		FROM enrollments e JOIN classes c ON c.id = e.class_id
		WHERE e.organization_id <> c.organization_id`,
}

// RelationshipClasses returns the relations this repository can probe, in a
// stable order.
func (r *ConsistencyRepository) RelationshipClasses() []models.RelationshipClass {
	return []models.RelationshipClass{
		models.RelationGradeEnrollment,
		models.RelationGradeTerm,
		models.RelationFeeAssignmentClass,
		models.RelationFeeAssignmentTerm,
		models.RelationEnrollmentClass,
	}
}

// FindOrphans returns every orphaned record for one relationship class.
func (r *ConsistencyRepository) FindOrphans(ctx context.Context, relation models.RelationshipClass) ([]models.ConsistencyFinding, error) {
	probe, ok := consistencyProbes[relation]
	if !ok {
		return nil, fmt.Errorf("unknown relationship class %q", relation)
	}

	var findings []models.ConsistencyFinding
	if err := r.db.SelectContext(ctx, &findings, probe); err != nil {
		return nil, fmt.Errorf("probe %s: %w", relation, err)
	}
	for i := range findings {
		findings[i].Relationship = relation
	}
	return findings, nil
}
