package models

import "time"

// Class is an organization-scoped teaching group.
type Class struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	Level          string    `db:"level" json:"level"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter provides filters for listing classes.
type ClassFilter struct {
	Level     string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TeachingAssignment maps a teacher principal to a class and subject for one
// term. The access service narrows teacher reads to assigned classes through
// this relation.
type TeachingAssignment struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	TermID         string    `db:"term_id" json:"term_id"`
	TeacherUserID  string    `db:"teacher_user_id" json:"teacher_user_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	Subject        string    `db:"subject" json:"subject"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
