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
	"github.com/lib/pq"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

// TermRepository handles persistence for the term registry. Every query is
// keyed by the owning organization; there is no unscoped term lookup except
// FindByID, whose callers verify ownership themselves.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

const termColumns = "id, organization_id, name, session_label, start_date, end_date, is_current, active, created_at, updated_at"

// List returns terms of one organization matching provided filters.
func (r *TermRepository) List(ctx context.Context, orgID string, filter models.TermFilter) ([]models.Term, int, error) {
	base := "FROM terms WHERE organization_id = $1"
	args := []interface{}{orgID}
	var conditions []string

	if filter.SessionLabel != "" {
		conditions = append(conditions, fmt.Sprintf("session_label = $%d", len(args)+1))
		args = append(args, filter.SessionLabel)
	}
	if filter.IsCurrent != nil {
		conditions = append(conditions, fmt.Sprintf("is_current = $%d", len(args)+1))
		args = append(args, *filter.IsCurrent)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":          true,
		"start_date":    true,
		"end_date":      true,
		"session_label": true,
		"created_at":    true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", termColumns, base, sortBy, order, size, offset)

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}

	return terms, total, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE id = $1", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindCurrent returns the organization's term with is_current set.
func (r *TermRepository) FindCurrent(ctx context.Context, orgID string) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE organization_id = $1 AND is_current = TRUE LIMIT 1", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, orgID); err != nil {
		return nil, err
	}
	return &term, nil
}

// Create inserts a new term record. New terms are never current; promotion is
// the only writer of is_current.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now
	term.IsCurrent = false

	const query = `INSERT INTO terms (id, organization_id, name, session_label, start_date, end_date, is_current, active, created_at, updated_at) VALUES (:id, :organization_id, :name, :session_label, :start_date, :end_date, :is_current, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update modifies mutable term fields. is_current is deliberately excluded.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms SET name = :name, session_label = :session_label, start_date = :start_date, end_date = :end_date, active = :active, updated_at = :updated_at WHERE id = :id AND organization_id = :organization_id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// Promote atomically makes termID the current term of orgID. The caller
// passes the current term id it observed (empty when it observed none). A
// row lock on the organization serialises concurrent promotions even when no
// term is current yet, since then there is no current-term row to lock; the
// CAS against the expectation turns a lost race into
// ErrTermPromotionConflict instead of a silent overwrite. The partial unique
// index terms_one_current_per_org on (organization_id) WHERE is_current
// guards the invariant at the schema level; a violation surfaces as the same
// retryable conflict.
func (r *TermRepository) Promote(ctx context.Context, orgID, termID, expectedCurrentID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin promote tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lockedOrgID string
	if lockErr := tx.GetContext(ctx, &lockedOrgID,
		`SELECT id FROM organizations WHERE id = $1 FOR UPDATE`, orgID); lockErr != nil {
		if errors.Is(lockErr, sql.ErrNoRows) {
			err = sql.ErrNoRows
			return err
		}
		err = fmt.Errorf("lock organization: %w", lockErr)
		return err
	}

	var lockedCurrentID string
	lockErr := tx.GetContext(ctx, &lockedCurrentID,
		`SELECT id FROM terms WHERE organization_id = $1 AND is_current = TRUE FOR UPDATE`, orgID)
	if lockErr != nil && !errors.Is(lockErr, sql.ErrNoRows) {
		err = fmt.Errorf("lock current term: %w", lockErr)
		return err
	}

	if lockedCurrentID != expectedCurrentID {
		err = appErrors.ErrTermPromotionConflict
		return err
	}

	now := time.Now().UTC()
	if lockedCurrentID != "" && lockedCurrentID != termID {
		if _, err = tx.ExecContext(ctx,
			`UPDATE terms SET is_current = FALSE, updated_at = $2 WHERE id = $1`, lockedCurrentID, now); err != nil {
			err = fmt.Errorf("clear current term: %w", err)
			return err
		}
	}

	res, execErr := tx.ExecContext(ctx,
		`UPDATE terms SET is_current = TRUE, updated_at = $3 WHERE id = $1 AND organization_id = $2`, termID, orgID, now)
	if execErr != nil {
		if isUniqueViolation(execErr) {
			err = appErrors.ErrTermPromotionConflict
			return err
		}
		err = fmt.Errorf("set current term: %w", execErr)
		return err
	}
	affected, raErr := res.RowsAffected()
	if raErr != nil {
		err = fmt.Errorf("set current term rows affected: %w", raErr)
		return err
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			err = appErrors.ErrTermPromotionConflict
			return err
		}
		return fmt.Errorf("commit promote tx: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Delete removes a non-current term.
func (r *TermRepository) Delete(ctx context.Context, orgID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM terms WHERE id = $1 AND organization_id = $2 AND is_current = FALSE`, id, orgID); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return nil
}

// CountEnrollments returns the number of enrollments referencing the term.
func (r *TermRepository) CountEnrollments(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE term_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count term enrollments: %w", err)
	}
	return count, nil
}
