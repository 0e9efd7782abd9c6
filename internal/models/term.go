package models

import "time"

// Term models an academic term owned by one organization. At most one term
// per organization has IsCurrent set; the promotion transaction in the term
// repository is the only writer of that flag.
type Term struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	SessionLabel   string    `db:"session_label" json:"session_label"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	IsCurrent      bool      `db:"is_current" json:"is_current"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by term list endpoints.
type TermFilter struct {
	SessionLabel string
	IsCurrent    *bool
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
