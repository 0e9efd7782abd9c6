package models

import "time"

// Student is an organization-scoped person record. Class membership lives on
// enrollments, which tie the student to a class within a term.
type Student struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	AdmissionNo    string     `db:"admission_no" json:"admission_no"`
	FullName       string     `db:"full_name" json:"full_name"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter provides filters for listing students.
type StudentFilter struct {
	ClassID   string
	IDs       []string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// GuardianLink ties a guardian principal to one of their wards.
type GuardianLink struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	GuardianUserID string    `db:"guardian_user_id" json:"guardian_user_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	Relationship   string    `db:"relationship" json:"relationship"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
