package verification

import (
	"fmt"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/policy"
)

// PermissionError reports a failed capability check. No state was changed.
type PermissionError struct {
	Capability policy.Capability
	Role       models.UserRole
	Reason     string
}

func (e *PermissionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
	return fmt.Sprintf("unauthorized: role %q lacks %s capability", e.Role, e.Capability)
}

// TransitionError reports a transition that is not defined from the current state.
type TransitionError struct {
	AchievementID string
	Current       models.VerificationStatus
	Target        models.VerificationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for achievement %s: %s -> %s", e.AchievementID, e.Current, e.Target)
}

// LockedError reports an edit attempted after the achievement left pending.
type LockedError struct {
	AchievementID string
	Current       models.VerificationStatus
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("achievement %s is %s and can no longer be edited", e.AchievementID, e.Current)
}

// InputError reports malformed input that slipped past request validation.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
