package models

import "time"

// Announcement is an organization-scoped notice, optionally pinned to a term.
type Announcement struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	TermID         *string    `db:"term_id" json:"term_id,omitempty"`
	Title          string     `db:"title" json:"title"`
	Body           string     `db:"body" json:"body"`
	AuthorUserID   string     `db:"author_user_id" json:"author_user_id"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter provides filters for listing announcements.
type AnnouncementFilter struct {
	PublishedOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
