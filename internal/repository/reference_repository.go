package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
)

// ReferenceRepository resolves a typed foreign reference to the organization
// that owns it. The scope guard uses it to verify, before any write, that
// every reference on a payload stays inside the active organization. The
// table per kind is a closed set; unknown kinds are an error, never a
// pass-through.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository instantiates a reference repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

var refTables = map[models.RefKind]string{
	models.RefOrganization: "organizations",
	models.RefTerm:         "terms",
	models.RefStudent:      "students",
	models.RefClass:        "classes",
	models.RefEnrollment:   "enrollments",
	models.RefFeeStructure: "fee_structures",
	models.RefFeeAssign:    "fee_assignments",
}

// OrganizationOf returns the organization id owning the referenced row.
// sql.ErrNoRows propagates when the reference does not exist.
func (r *ReferenceRepository) OrganizationOf(ctx context.Context, ref models.Reference) (string, error) {
	if ref.Kind == models.RefOrganization {
		var id string
		if err := r.db.GetContext(ctx, &id, `SELECT id FROM organizations WHERE id = $1`, ref.ID); err != nil {
			return "", err
		}
		return id, nil
	}

	table, ok := refTables[ref.Kind]
	if !ok {
		return "", fmt.Errorf("unknown reference kind %q", ref.Kind)
	}

	var orgID string
	query := fmt.Sprintf("SELECT organization_id FROM %s WHERE id = $1", table)
	if err := r.db.GetContext(ctx, &orgID, query, ref.ID); err != nil {
		return "", err
	}
	return orgID, nil
}

// TermOf returns the term id carried by a term-scoped reference, used to
// verify term agreement on top of organization agreement.
func (r *ReferenceRepository) TermOf(ctx context.Context, ref models.Reference) (string, error) {
	switch ref.Kind {
	case models.RefTerm:
		return ref.ID, nil
	case models.RefEnrollment, models.RefFeeStructure, models.RefFeeAssign:
		table := refTables[ref.Kind]
		var termID string
		query := fmt.Sprintf("SELECT term_id FROM %s WHERE id = $1", table)
		if err := r.db.GetContext(ctx, &termID, query, ref.ID); err != nil {
			return "", err
		}
		return termID, nil
	default:
		return "", fmt.Errorf("reference kind %q is not term-scoped", ref.Kind)
	}
}
