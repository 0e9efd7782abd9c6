package models

import "time"

// Organization is the top-level isolation boundary. Every scoped entity in
// the platform carries its id; nothing crosses it.
type Organization struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	Verified  bool      `db:"verified" json:"verified"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrganizationFilter captures filtering criteria for listing organizations.
type OrganizationFilter struct {
	Active    *bool
	Verified  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// OrganizationStatusUpdate describes one row of a bulk status change.
type OrganizationStatusUpdate struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	Active         *bool  `json:"active,omitempty"`
	Verified       *bool  `json:"verified,omitempty"`
}
