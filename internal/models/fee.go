package models

import "time"

// FeeAssignmentStatus tracks settlement of an assignment.
type FeeAssignmentStatus string

const (
	FeeAssignmentPending FeeAssignmentStatus = "PENDING"
	FeeAssignmentPartial FeeAssignmentStatus = "PARTIAL"
	FeeAssignmentSettled FeeAssignmentStatus = "SETTLED"
	FeeAssignmentWaived  FeeAssignmentStatus = "WAIVED"
)

// FeeStructure is a billable item defined for one organization and term.
type FeeStructure struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	TermID         string    `db:"term_id" json:"term_id"`
	Name           string    `db:"name" json:"name"`
	AmountCents    int64     `db:"amount_cents" json:"amount_cents"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// FeeAssignment binds a fee structure to a student for a term. Bulk creation
// is all-or-nothing: one student outside the active organization fails the
// entire batch.
type FeeAssignment struct {
	ID             string              `db:"id" json:"id"`
	OrganizationID string              `db:"organization_id" json:"organization_id"`
	TermID         string              `db:"term_id" json:"term_id"`
	FeeStructureID string              `db:"fee_structure_id" json:"fee_structure_id"`
	StudentID      string              `db:"student_id" json:"student_id"`
	ClassID        *string             `db:"class_id" json:"class_id,omitempty"`
	AmountCents    int64               `db:"amount_cents" json:"amount_cents"`
	DueDate        *time.Time          `db:"due_date" json:"due_date,omitempty"`
	Status         FeeAssignmentStatus `db:"status" json:"status"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// FeePayment records money received against an assignment.
type FeePayment struct {
	ID              string    `db:"id" json:"id"`
	OrganizationID  string    `db:"organization_id" json:"organization_id"`
	TermID          string    `db:"term_id" json:"term_id"`
	FeeAssignmentID string    `db:"fee_assignment_id" json:"fee_assignment_id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Method          string    `db:"method" json:"method"`
	Reference       string    `db:"reference" json:"reference"`
	PaidAt          time.Time `db:"paid_at" json:"paid_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// FeeAssignmentFilter provides filters for listing fee assignments.
type FeeAssignmentFilter struct {
	StudentID      string
	FeeStructureID string
	Status         FeeAssignmentStatus
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
