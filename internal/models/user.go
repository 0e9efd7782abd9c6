package models

import "time"

// UserRole is the closed set of principal roles. The access matrix in the
// access service enumerates every role explicitly; adding a role here forces
// the matrix and the narrowing rules to be revisited.
type UserRole string

const (
	RolePlatformAdmin UserRole = "PLATFORM_ADMIN"
	RoleOwner         UserRole = "OWNER"
	RoleAdmin         UserRole = "ADMIN"
	RoleTeacher       UserRole = "TEACHER"
	RoleStudent       UserRole = "STUDENT"
	RoleGuardian      UserRole = "GUARDIAN"
)

// User represents an authenticated principal. OrganizationID is nil only for
// platform administrators; PersonID links student and guardian principals to
// the student record they may read.
type User struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID *string    `db:"organization_id" json:"organization_id,omitempty"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FullName       string     `db:"full_name" json:"full_name"`
	Role           UserRole   `db:"role" json:"role"`
	PersonID       *string    `db:"person_id" json:"person_id,omitempty"`
	Active         bool       `db:"active" json:"active"`
	Verified       bool       `db:"verified" json:"verified"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
