package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type feeRepository interface {
	ListStructures(ctx context.Context, orgID, termID string) ([]models.FeeStructure, error)
	FindStructureByID(ctx context.Context, orgID, id string) (*models.FeeStructure, error)
	CreateStructure(ctx context.Context, structure *models.FeeStructure) error
	ListAssignments(ctx context.Context, orgID, termID string, filter models.FeeAssignmentFilter) ([]models.FeeAssignment, int, error)
	FindAssignmentByID(ctx context.Context, orgID, id string) (*models.FeeAssignment, error)
	BulkCreateAssignments(ctx context.Context, orgID string, assignments []models.FeeAssignment) error
	CreatePayment(ctx context.Context, payment *models.FeePayment) error
	ListPayments(ctx context.Context, orgID, assignmentID string) ([]models.FeePayment, error)
}

// CreateFeeStructureRequest defines a billable item for the active term.
type CreateFeeStructureRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=128"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
}

// BulkAssignFeesRequest assigns one fee structure to many students at once.
type BulkAssignFeesRequest struct {
	FeeStructureID string     `json:"fee_structure_id" validate:"required,uuid"`
	StudentIDs     []string   `json:"student_ids" validate:"required,min=1,dive,uuid"`
	DueDate        *time.Time `json:"due_date"`
}

// RecordPaymentRequest records money received against an assignment.
type RecordPaymentRequest struct {
	FeeAssignmentID string `json:"fee_assignment_id" validate:"required,uuid"`
	AmountCents     int64  `json:"amount_cents" validate:"required,gt=0"`
	Method          string `json:"method" validate:"required,max=32"`
	Reference       string `json:"reference" validate:"max=64"`
}

// FeeService manages fee structures, assignments and payments for one
// organization and term.
type FeeService struct {
	repo      feeRepository
	access    accessAuthorizer
	guard     scopeChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService creates a new fee service instance.
func NewFeeService(repo feeRepository, access accessAuthorizer, guard scopeChecker, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, access: access, guard: guard, validator: validate, logger: logger}
}

// ListStructures returns fee structures for the active term.
func (s *FeeService) ListStructures(ctx context.Context, rc *models.RequestContext) ([]models.FeeStructure, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityFeeStructure, Action: models.ActionList}); err != nil {
		return nil, err
	}
	if rc.TermID == "" {
		return nil, appErrors.ErrNoCurrentTerm
	}

	structures, err := s.repo.ListStructures(ctx, rc.OrganizationID, rc.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee structures")
	}
	return structures, nil
}

// CreateStructure defines a new billable item for the active term.
func (s *FeeService) CreateStructure(ctx context.Context, rc *models.RequestContext, req CreateFeeStructureRequest) (*models.FeeStructure, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityFeeStructure, Action: models.ActionCreate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}
	if rc.TermID == "" {
		return nil, appErrors.ErrNoCurrentTerm
	}

	structure := &models.FeeStructure{
		OrganizationID: rc.OrganizationID,
		TermID:         rc.TermID,
		Name:           req.Name,
		AmountCents:    req.AmountCents,
	}

	if err := s.repo.CreateStructure(ctx, structure); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee structure")
	}
	return structure, nil
}

// ListAssignments returns fee assignments for the active term. A student's
// list is pinned to their own record; a guardian must name a ward.
func (s *FeeService) ListAssignments(ctx context.Context, rc *models.RequestContext, filter models.FeeAssignmentFilter) ([]models.FeeAssignment, *models.Pagination, error) {
	if rc == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if rc.Role == models.RoleStudent && filter.StudentID == "" {
		filter.StudentID = rc.PersonID
	}
	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityFeeAssign,
		Action:          models.ActionList,
		TargetStudentID: filter.StudentID,
	}); err != nil {
		return nil, nil, err
	}
	if rc.TermID == "" {
		return nil, nil, appErrors.ErrNoCurrentTerm
	}

	assignments, total, err := s.repo.ListAssignments(ctx, rc.OrganizationID, rc.TermID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee assignments")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return assignments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// BulkAssign creates one assignment per student in a single transaction. The
// fee structure is scope-checked up front; each student row is re-verified
// against the organization inside the transaction, and one mismatch rolls
// back the whole batch.
func (s *FeeService) BulkAssign(ctx context.Context, rc *models.RequestContext, req BulkAssignFeesRequest) ([]models.FeeAssignment, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityFeeAssign, Action: models.ActionCreate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk assignment payload")
	}
	if rc.TermID == "" {
		return nil, appErrors.ErrNoCurrentTerm
	}

	if err := s.guard.CheckTermScoped(ctx, rc, models.Reference{Kind: models.RefFeeStructure, ID: req.FeeStructureID}); err != nil {
		return nil, err
	}

	structure, err := s.repo.FindStructureByID(ctx, rc.OrganizationID, req.FeeStructureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}

	seen := make(map[string]bool, len(req.StudentIDs))
	assignments := make([]models.FeeAssignment, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		if seen[studentID] {
			continue
		}
		seen[studentID] = true
		assignments = append(assignments, models.FeeAssignment{
			OrganizationID: rc.OrganizationID,
			TermID:         rc.TermID,
			FeeStructureID: structure.ID,
			StudentID:      studentID,
			AmountCents:    structure.AmountCents,
			DueDate:        req.DueDate,
			Status:         models.FeeAssignmentPending,
		})
	}

	if err := s.repo.BulkCreateAssignments(ctx, rc.OrganizationID, assignments); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign fees")
	}

	return assignments, nil
}

// RecordPayment records a payment against a fee assignment and advances the
// assignment status inside one transaction.
func (s *FeeService) RecordPayment(ctx context.Context, rc *models.RequestContext, req RecordPaymentRequest) (*models.FeePayment, error) {
	if err := s.access.Authorize(ctx, rc, AccessRequest{Entity: models.EntityFeePayment, Action: models.ActionCreate}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	if err := s.guard.CheckReferences(ctx, rc, models.Reference{Kind: models.RefFeeAssign, ID: req.FeeAssignmentID}); err != nil {
		return nil, err
	}

	assignment, err := s.repo.FindAssignmentByID(ctx, rc.OrganizationID, req.FeeAssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee assignment")
	}
	if assignment.Status == models.FeeAssignmentSettled || assignment.Status == models.FeeAssignmentWaived {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment is already settled")
	}

	payment := &models.FeePayment{
		OrganizationID:  rc.OrganizationID,
		TermID:          assignment.TermID,
		FeeAssignmentID: assignment.ID,
		StudentID:       assignment.StudentID,
		AmountCents:     req.AmountCents,
		Method:          req.Method,
		Reference:       req.Reference,
		PaidAt:          time.Now().UTC(),
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	return payment, nil
}

// ListPayments returns payments recorded against an assignment.
func (s *FeeService) ListPayments(ctx context.Context, rc *models.RequestContext, assignmentID string) ([]models.FeePayment, error) {
	assignment, err := s.repo.FindAssignmentByID(ctx, rc.OrganizationID, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee assignment")
	}

	if err := s.access.Authorize(ctx, rc, AccessRequest{
		Entity:          models.EntityFeePayment,
		Action:          models.ActionList,
		TargetStudentID: assignment.StudentID,
	}); err != nil {
		return nil, err
	}

	payments, err := s.repo.ListPayments(ctx, rc.OrganizationID, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}
