package dto

// SaveProfileRequest is the caller's own profile payload.
type SaveProfileRequest struct {
	StudentID *string `json:"studentId" validate:"omitempty,min=3,max=20"`
	Name      string  `json:"name" validate:"required,notblank,min=2,max=100"`
	Email     string  `json:"email" validate:"required,email,max=254"`
	Bio       *string `json:"bio" validate:"omitempty,max=500"`
}

// ProfileQuery filters the admin profile listing.
type ProfileQuery struct {
	Role     string `form:"role" validate:"omitempty,oneof=admin user guest"`
	Search   string `form:"search" validate:"omitempty,max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}
