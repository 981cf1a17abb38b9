// Package verification implements the achievement lifecycle: creation rules,
// the pending -> verified/rejected transition table and pending-only edits.
// Every function here is pure; persistence applies the returned snapshot with
// a compare-and-swap on the previous status.
package verification

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/policy"
)

// Outcome is the result of a successful transition.
type Outcome struct {
	From        models.VerificationStatus
	Achievement models.Achievement
	Event       models.VerificationEvent
}

// Targets returns the statuses reachable from s.
func Targets(s models.VerificationStatus) []models.VerificationStatus {
	switch s {
	case models.StatusPending:
		return []models.VerificationStatus{models.StatusVerified, models.StatusRejected}
	case models.StatusVerified, models.StatusRejected:
		return nil
	default:
		return nil
	}
}

// Allowed reports whether from -> to is a defined transition.
func Allowed(from, to models.VerificationStatus) bool {
	for _, target := range Targets(from) {
		if target == to {
			return true
		}
	}
	return false
}

// Transition applies target to current on behalf of actor. The capability check
// runs before the state check so an unauthorized caller learns nothing about
// the record. current is not modified.
func Transition(current models.Achievement, actor models.Profile, target models.VerificationStatus, notes string, now time.Time) (*Outcome, error) {
	if !policy.CanVerify(actor) {
		return nil, &PermissionError{Capability: policy.CapabilityVerify, Role: actor.Role}
	}
	if !Allowed(current.Status, target) {
		return nil, &TransitionError{AchievementID: current.AchievementID, Current: current.Status, Target: target}
	}

	event := models.VerificationEvent{
		Status:    target,
		Verifier:  actor.Principal,
		Notes:     optionalNotes(notes),
		Timestamp: now.UTC(),
	}

	next := current
	next.Links = cloneLinks(current.Links)
	next.Status = target
	next.VerificationHistory = current.VerificationHistory.Append(event)
	next.UpdatedAt = event.Timestamp

	return &Outcome{From: current.Status, Achievement: next, Event: event}, nil
}

// NewAchievement validates the creation rule and returns the pending record.
// Only students may create, and only for the student id on their own profile.
func NewAchievement(actor models.Profile, input models.AchievementInput, now time.Time) (*models.Achievement, error) {
	if !policy.IsStudent(actor) {
		return nil, &PermissionError{Capability: policy.CapabilityStudent, Role: actor.Role}
	}
	studentID := strings.TrimSpace(input.StudentID)
	if studentID == "" {
		return nil, &InputError{Field: "studentId", Reason: "required"}
	}
	if actor.StudentIDValue() != studentID {
		return nil, &PermissionError{
			Capability: policy.CapabilityStudent,
			Role:       actor.Role,
			Reason:     "student id does not match caller profile",
		}
	}
	if !input.Category.Valid() {
		return nil, &InputError{Field: "category", Reason: fmt.Sprintf("unknown category %q", input.Category)}
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, &InputError{Field: "title", Reason: "required"}
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, &InputError{Field: "description", Reason: "required"}
	}

	now = now.UTC()
	id := strings.TrimSpace(input.AchievementID)
	if id == "" {
		id = fmt.Sprintf("%s-%d", studentID, now.UnixNano())
	}

	return &models.Achievement{
		AchievementID:    id,
		StudentID:        studentID,
		StudentPrincipal: actor.Principal,
		Title:            title,
		Description:      description,
		Category:         input.Category,
		Date:             input.Date,
		Links:            cloneLinks(input.Links),
		CertificateImage: input.CertificateImage,
		Status:           models.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Edit applies patch to a pending achievement on behalf of actor.
func Edit(current models.Achievement, actor models.Profile, patch models.AchievementPatch, now time.Time) (*models.Achievement, error) {
	if !policy.CanEditAchievement(actor, current.StudentPrincipal) {
		return nil, &PermissionError{Capability: policy.CapabilityEdit, Role: actor.Role}
	}
	if current.Status != models.StatusPending {
		return nil, &LockedError{AchievementID: current.AchievementID, Current: current.Status}
	}

	next := current
	next.Links = cloneLinks(current.Links)
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
		if next.Title == "" {
			return nil, &InputError{Field: "title", Reason: "required"}
		}
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
		if next.Description == "" {
			return nil, &InputError{Field: "description", Reason: "required"}
		}
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.Links != nil {
		next.Links = cloneLinks(*patch.Links)
	}
	if patch.CertificateImage != nil {
		if strings.TrimSpace(*patch.CertificateImage) == "" {
			next.CertificateImage = nil
		} else {
			img := *patch.CertificateImage
			next.CertificateImage = &img
		}
	}
	next.UpdatedAt = now.UTC()
	return &next, nil
}

func optionalNotes(notes string) *string {
	trimmed := strings.TrimSpace(notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneLinks(links []string) models.StringList {
	if len(links) == 0 {
		return nil
	}
	cp := make(models.StringList, len(links))
	copy(cp, links)
	return cp
}
