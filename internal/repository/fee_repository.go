package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

// FeeRepository handles persistence for fee structures, assignments and
// payments, all scoped by organization and term.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository instantiates a fee repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

const feeStructureColumns = "id, organization_id, term_id, name, amount_cents, created_at, updated_at"
const feeAssignmentColumns = "id, organization_id, term_id, fee_structure_id, student_id, class_id, amount_cents, due_date, status, created_at, updated_at"

// ListStructures returns fee structures of one organization and term.
func (r *FeeRepository) ListStructures(ctx context.Context, orgID, termID string) ([]models.FeeStructure, error) {
	query := fmt.Sprintf("SELECT %s FROM fee_structures WHERE organization_id = $1 AND term_id = $2 ORDER BY name ASC", feeStructureColumns)
	var structures []models.FeeStructure
	if err := r.db.SelectContext(ctx, &structures, query, orgID, termID); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return structures, nil
}

// FindStructureByID loads a fee structure scoped to the organization.
func (r *FeeRepository) FindStructureByID(ctx context.Context, orgID, id string) (*models.FeeStructure, error) {
	query := fmt.Sprintf("SELECT %s FROM fee_structures WHERE id = $1 AND organization_id = $2", feeStructureColumns)
	var structure models.FeeStructure
	if err := r.db.GetContext(ctx, &structure, query, id, orgID); err != nil {
		return nil, err
	}
	return &structure, nil
}

// CreateStructure inserts a new fee structure.
func (r *FeeRepository) CreateStructure(ctx context.Context, structure *models.FeeStructure) error {
	if structure.ID == "" {
		structure.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if structure.CreatedAt.IsZero() {
		structure.CreatedAt = now
	}
	structure.UpdatedAt = now

	const query = `INSERT INTO fee_structures (id, organization_id, term_id, name, amount_cents, created_at, updated_at) VALUES (:id, :organization_id, :term_id, :name, :amount_cents, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, structure); err != nil {
		return fmt.Errorf("create fee structure: %w", err)
	}
	return nil
}

// ListAssignments returns fee assignments within one organization and term.
func (r *FeeRepository) ListAssignments(ctx context.Context, orgID, termID string, filter models.FeeAssignmentFilter) ([]models.FeeAssignment, int, error) {
	base := "FROM fee_assignments WHERE organization_id = $1 AND term_id = $2"
	args := []interface{}{orgID, termID}
	var conditions []string

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.FeeStructureID != "" {
		conditions = append(conditions, fmt.Sprintf("fee_structure_id = $%d", len(args)+1))
		args = append(args, filter.FeeStructureID)
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
		"due_date":   true,
		"status":     true,
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", feeAssignmentColumns, base, sortBy, order, size, offset)

	var assignments []models.FeeAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee assignments: %w", err)
	}

	return assignments, total, nil
}

// FindAssignmentByID loads a fee assignment scoped to the organization.
func (r *FeeRepository) FindAssignmentByID(ctx context.Context, orgID, id string) (*models.FeeAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM fee_assignments WHERE id = $1 AND organization_id = $2", feeAssignmentColumns)
	var assignment models.FeeAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id, orgID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// BulkCreateAssignments inserts one assignment per student in a single
// transaction. Each student's organization is re-verified inside the
// transaction; the first row that resolves outside orgID aborts with
// ErrCrossTenantReference and nothing is persisted.
func (r *FeeRepository) BulkCreateAssignments(ctx context.Context, orgID string, assignments []models.FeeAssignment) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk assignment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range assignments {
		a := &assignments[i]

		var studentOrg string
		getErr := tx.GetContext(ctx, &studentOrg, `SELECT organization_id FROM students WHERE id = $1`, a.StudentID)
		if getErr != nil {
			if errors.Is(getErr, sql.ErrNoRows) {
				err = appErrors.Clone(appErrors.ErrCrossTenantReference, "fee assignment references unknown student")
				return err
			}
			err = fmt.Errorf("resolve student organization: %w", getErr)
			return err
		}
		if studentOrg != orgID {
			err = appErrors.ErrCrossTenantReference
			return err
		}

		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.OrganizationID = orgID
		if a.Status == "" {
			a.Status = models.FeeAssignmentPending
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now

		if _, execErr := tx.NamedExecContext(ctx,
			`INSERT INTO fee_assignments (id, organization_id, term_id, fee_structure_id, student_id, class_id, amount_cents, due_date, status, created_at, updated_at) VALUES (:id, :organization_id, :term_id, :fee_structure_id, :student_id, :class_id, :amount_cents, :due_date, :status, :created_at, :updated_at)`,
			a); execErr != nil {
			err = fmt.Errorf("insert fee assignment: %w", execErr)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk assignment tx: %w", err)
	}
	return nil
}

// CreatePayment records a payment and advances the assignment status in one
// transaction.
func (r *FeeRepository) CreatePayment(ctx context.Context, payment *models.FeePayment) (err error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx,
		`INSERT INTO fee_payments (id, organization_id, term_id, fee_assignment_id, student_id, amount_cents, method, reference, paid_at, created_at) VALUES (:id, :organization_id, :term_id, :fee_assignment_id, :student_id, :amount_cents, :method, :reference, :paid_at, :created_at)`,
		payment); err != nil {
		err = fmt.Errorf("insert fee payment: %w", err)
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE fee_assignments SET status = CASE WHEN (SELECT COALESCE(SUM(amount_cents), 0) FROM fee_payments WHERE fee_assignment_id = $1) >= amount_cents THEN 'SETTLED' ELSE 'PARTIAL' END, updated_at = $3 WHERE id = $1 AND organization_id = $2`,
		payment.FeeAssignmentID, payment.OrganizationID, time.Now().UTC()); err != nil {
		err = fmt.Errorf("update assignment status: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit payment tx: %w", err)
	}
	return nil
}

// ListPayments returns payments for one assignment within the organization.
func (r *FeeRepository) ListPayments(ctx context.Context, orgID, assignmentID string) ([]models.FeePayment, error) {
	const query = `SELECT id, organization_id, term_id, fee_assignment_id, student_id, amount_cents, method, reference, paid_at, created_at FROM fee_payments WHERE fee_assignment_id = $1 AND organization_id = $2 ORDER BY paid_at DESC`
	var payments []models.FeePayment
	if err := r.db.SelectContext(ctx, &payments, query, assignmentID, orgID); err != nil {
		return nil, fmt.Errorf("list fee payments: %w", err)
	}
	return payments, nil
}
