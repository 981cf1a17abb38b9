package models

import "time"

// UserRole represents the roles known to the permission policy.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
	RoleGuest UserRole = "guest"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// Profile is the per-identity record consulted by the permission policy.
type Profile struct {
	Principal string    `db:"principal" json:"principal"`
	Role      UserRole  `db:"role" json:"role"`
	StudentID *string   `db:"student_id" json:"studentId,omitempty"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Bio       *string   `db:"bio" json:"bio,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// StudentIDValue returns the profile student id or an empty string.
func (p Profile) StudentIDValue() string {
	if p.StudentID == nil {
		return ""
	}
	return *p.StudentID
}

// ProfileFilter constrains profile listings.
type ProfileFilter struct {
	Role     *UserRole
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ProfileInput carries the fields a caller may submit when saving their profile.
type ProfileInput struct {
	StudentID *string
	Name      string
	Email     string
	Bio       *string
}

// RoleInfo answers "who am I" for the calling principal.
type RoleInfo struct {
	Principal string   `json:"principal"`
	Role      UserRole `json:"role"`
	IsAdmin   bool     `json:"isAdmin"`
}
