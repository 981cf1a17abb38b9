// Package policy holds the pure authorization predicates shared by the
// verification workflow, the search layer and the HTTP handlers.
package policy

import "github.com/noah-isme/achievement-registry-api/internal/models"

// Capability names a permission checked by the policy.
type Capability string

const (
	CapabilityVerify  Capability = "verify"
	CapabilityStudent Capability = "student"
	CapabilityEdit    Capability = "edit"
)

// CanVerify reports whether the profile may transition achievement status.
func CanVerify(p models.Profile) bool {
	switch p.Role {
	case models.RoleAdmin:
		return true
	case models.RoleUser, models.RoleGuest:
		return false
	default:
		return false
	}
}

// IsStudent reports whether the profile acts as a student.
func IsStudent(p models.Profile) bool {
	switch p.Role {
	case models.RoleUser:
		return true
	case models.RoleAdmin, models.RoleGuest:
		return false
	default:
		return false
	}
}

// CanEditAchievement reports whether the profile may edit an achievement owned
// by ownerPrincipal. Admins may edit anything, students only their own.
func CanEditAchievement(p models.Profile, ownerPrincipal string) bool {
	switch p.Role {
	case models.RoleAdmin:
		return true
	case models.RoleUser:
		return p.Principal != "" && p.Principal == ownerPrincipal
	case models.RoleGuest:
		return false
	default:
		return false
	}
}

// Permissions summarises what a profile may do with a given achievement.
type Permissions struct {
	CanEdit   bool `json:"canEdit"`
	CanVerify bool `json:"canVerify"`
}

// For evaluates the policy for p against an achievement.
func For(p models.Profile, a models.Achievement) Permissions {
	return Permissions{
		CanEdit:   CanEditAchievement(p, a.StudentPrincipal),
		CanVerify: CanVerify(p) && a.Status == models.StatusPending,
	}
}
