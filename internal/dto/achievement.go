package dto

// DateLayout is the calendar date format accepted for achievement dates.
const DateLayout = "2006-01-02"

// CreateAchievementRequest defines the payload for registering an achievement.
type CreateAchievementRequest struct {
	AchievementID    string   `json:"achievementId" validate:"omitempty,max=64"`
	StudentID        string   `json:"studentId" validate:"required,min=3,max=20"`
	Title            string   `json:"title" validate:"required,notblank,min=3,max=200"`
	Description      string   `json:"description" validate:"required,notblank,min=10,max=2000"`
	Category         string   `json:"category" validate:"required,oneof=certificate researchPaper hackathon project"`
	Date             string   `json:"date" validate:"required,datetime=2006-01-02"`
	Links            []string `json:"links" validate:"omitempty,max=20,dive,url"`
	CertificateImage *string  `json:"certificateImage" validate:"omitempty,max=512"`
}

// UpdateAchievementRequest lists the fields editable while an achievement is pending.
type UpdateAchievementRequest struct {
	Title            *string   `json:"title" validate:"omitempty,notblank,min=3,max=200"`
	Description      *string   `json:"description" validate:"omitempty,notblank,min=10,max=2000"`
	Date             *string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Links            *[]string `json:"links" validate:"omitempty,max=20,dive,url"`
	CertificateImage *string   `json:"certificateImage" validate:"omitempty,max=512"`
}

// ReviewAchievementRequest records a verifier decision.
type ReviewAchievementRequest struct {
	Status string `json:"status" validate:"required,oneof=verified rejected"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// AchievementQuery carries list filters taken from the query string.
type AchievementQuery struct {
	StudentID string `form:"studentId" validate:"omitempty,min=3,max=20"`
	Category  string `form:"category" validate:"omitempty,oneof=certificate researchPaper hackathon project"`
	Query     string `form:"q" validate:"omitempty,max=200"`
	Format    string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
