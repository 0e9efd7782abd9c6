package models

import "time"

// Grade records one score for an enrollment in a subject. It is term-scoped;
// its term id must always agree with the term of the enrollment it points at
// (the consistency validator reports rows where they diverge).
type Grade struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	TermID         string    `db:"term_id" json:"term_id"`
	EnrollmentID   string    `db:"enrollment_id" json:"enrollment_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	Subject        string    `db:"subject" json:"subject"`
	Score          float64   `db:"score" json:"score"`
	MaxScore       float64   `db:"max_score" json:"max_score"`
	RecordedBy     string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter provides filters for listing grades.
type GradeFilter struct {
	EnrollmentID string
	StudentID    string
	ClassID      string
	Subject      string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
