package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AchievementCategory enumerates the kinds of accomplishment a student can register.
type AchievementCategory string

const (
	CategoryCertificate   AchievementCategory = "certificate"
	CategoryResearchPaper AchievementCategory = "researchPaper"
	CategoryHackathon     AchievementCategory = "hackathon"
	CategoryProject       AchievementCategory = "project"
)

// AchievementCategories lists every category in declaration order.
var AchievementCategories = []AchievementCategory{
	CategoryCertificate,
	CategoryResearchPaper,
	CategoryHackathon,
	CategoryProject,
}

// Valid reports whether c is one of the known categories.
func (c AchievementCategory) Valid() bool {
	switch c {
	case CategoryCertificate, CategoryResearchPaper, CategoryHackathon, CategoryProject:
		return true
	default:
		return false
	}
}

// VerificationStatus captures the lifecycle state of an achievement.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusRejected VerificationStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	default:
		return false
	}
}

// Achievement is a student-submitted accomplishment with a verification lifecycle.
type Achievement struct {
	AchievementID       string              `db:"achievement_id" json:"achievementId"`
	StudentID           string              `db:"student_id" json:"studentId"`
	StudentPrincipal    string              `db:"student_principal" json:"studentPrincipal"`
	Title               string              `db:"title" json:"title"`
	Description         string              `db:"description" json:"description"`
	Category            AchievementCategory `db:"category" json:"category"`
	Date                time.Time           `db:"achieved_at" json:"date"`
	Links               StringList          `db:"links" json:"links,omitempty"`
	CertificateImage    *string             `db:"certificate_image" json:"certificateImage,omitempty"`
	Status              VerificationStatus  `db:"status" json:"status"`
	VerificationHistory VerificationHistory `db:"verification_history" json:"verificationHistory"`
	CreatedAt           time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updatedAt"`
}

// VerificationEvent is the immutable record appended on every status transition.
type VerificationEvent struct {
	Status    VerificationStatus `json:"status"`
	Verifier  string             `json:"verifier"`
	Notes     *string            `json:"notes,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// VerificationHistory is an append-only sequence of verification events.
// The zero value is an empty history. Values are never mutated in place:
// Append returns a new history sharing nothing with the receiver.
type VerificationHistory struct {
	events []VerificationEvent
}

// NewVerificationHistory builds a history from the given events, copying them.
func NewVerificationHistory(events ...VerificationEvent) VerificationHistory {
	if len(events) == 0 {
		return VerificationHistory{}
	}
	cp := make([]VerificationEvent, len(events))
	copy(cp, events)
	return VerificationHistory{events: cp}
}

// Len returns the number of recorded transitions.
func (h VerificationHistory) Len() int {
	return len(h.events)
}

// Latest returns the most recent event.
func (h VerificationHistory) Latest() (VerificationEvent, bool) {
	if len(h.events) == 0 {
		return VerificationEvent{}, false
	}
	return h.events[len(h.events)-1], true
}

// Events returns a copy of the recorded events, oldest first.
func (h VerificationHistory) Events() []VerificationEvent {
	cp := make([]VerificationEvent, len(h.events))
	copy(cp, h.events)
	return cp
}

// Append returns a new history with event added at the end.
func (h VerificationHistory) Append(event VerificationEvent) VerificationHistory {
	next := make([]VerificationEvent, len(h.events), len(h.events)+1)
	copy(next, h.events)
	return VerificationHistory{events: append(next, event)}
}

// MarshalJSON renders the history as a JSON array (never null).
func (h VerificationHistory) MarshalJSON() ([]byte, error) {
	if h.events == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.events)
}

// UnmarshalJSON decodes a JSON array of events.
func (h *VerificationHistory) UnmarshalJSON(data []byte) error {
	var events []VerificationEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return err
	}
	*h = NewVerificationHistory(events...)
	return nil
}

// Value stores the history in a JSONB column. A string is returned so the
// driver sends text rather than bytea.
func (h VerificationHistory) Value() (driver.Value, error) {
	raw, err := h.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan reads the history from a JSONB column.
func (h *VerificationHistory) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*h = VerificationHistory{}
		return nil
	case []byte:
		return h.UnmarshalJSON(v)
	case string:
		return h.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("verification history: unsupported scan type %T", src)
	}
}

// AchievementSummary aggregates status counts for a student's dashboard.
type AchievementSummary struct {
	StudentID string `db:"-" json:"studentId"`
	Total     int    `db:"total" json:"total"`
	Pending   int    `db:"pending" json:"pending"`
	Verified  int    `db:"verified" json:"verified"`
	Rejected  int    `db:"rejected" json:"rejected"`
}

// AchievementInput carries the caller-provided fields for a new achievement.
// The owning principal is never taken from input; it is the caller's identity.
type AchievementInput struct {
	AchievementID    string
	StudentID        string
	Title            string
	Description      string
	Category         AchievementCategory
	Date             time.Time
	Links            []string
	CertificateImage *string
}

// AchievementPatch lists the descriptive fields an editor may change while an
// achievement is still pending. Nil fields are left untouched.
type AchievementPatch struct {
	Title            *string
	Description      *string
	Date             *time.Time
	Links            *[]string
	CertificateImage *string
}
