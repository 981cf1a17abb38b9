package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/achievement-registry-api/internal/models"
)

func TestCanVerify(t *testing.T) {
	assert.True(t, CanVerify(models.Profile{Role: models.RoleAdmin}))
	assert.False(t, CanVerify(models.Profile{Role: models.RoleUser}))
	assert.False(t, CanVerify(models.Profile{Role: models.RoleGuest}))
	assert.False(t, CanVerify(models.Profile{Role: "superadmin"}))
}

func TestIsStudent(t *testing.T) {
	assert.True(t, IsStudent(models.Profile{Role: models.RoleUser}))
	assert.False(t, IsStudent(models.Profile{Role: models.RoleAdmin}))
	assert.False(t, IsStudent(models.Profile{Role: models.RoleGuest}))
}

func TestCanEditAchievement(t *testing.T) {
	cases := []struct {
		name    string
		profile models.Profile
		owner   string
		want    bool
	}{
		{"guest matching owner", models.Profile{Principal: "p-1", Role: models.RoleGuest}, "p-1", false},
		{"guest other owner", models.Profile{Principal: "p-1", Role: models.RoleGuest}, "p-2", false},
		{"owning student", models.Profile{Principal: "p-1", Role: models.RoleUser}, "p-1", true},
		{"other student", models.Profile{Principal: "p-1", Role: models.RoleUser}, "p-2", false},
		{"student with blank principal", models.Profile{Role: models.RoleUser}, "", false},
		{"admin any owner", models.Profile{Principal: "admin", Role: models.RoleAdmin}, "p-9", true},
		{"unknown role", models.Profile{Principal: "p-1", Role: "moderator"}, "p-1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanEditAchievement(tc.profile, tc.owner))
		})
	}
}

func TestForPermissions(t *testing.T) {
	admin := models.Profile{Principal: "admin", Role: models.RoleAdmin}
	pending := models.Achievement{StudentPrincipal: "p-1", Status: models.StatusPending}
	verified := models.Achievement{StudentPrincipal: "p-1", Status: models.StatusVerified}

	assert.Equal(t, Permissions{CanEdit: true, CanVerify: true}, For(admin, pending))
	assert.Equal(t, Permissions{CanEdit: true, CanVerify: false}, For(admin, verified))
	assert.Equal(t, Permissions{CanEdit: true}, For(models.Profile{Principal: "p-1", Role: models.RoleUser}, pending))
}
