package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name  string
		want  Role
		found bool
	}{
		{"provider", RoleProvider, true},
		{"Patient", RolePatient, true},
		{" ADMINISTRATOR ", RoleAdministrator, true},
		{"doctor", RoleUndefined, false},
		{"", RoleUndefined, false},
	}
	for _, tt := range tests {
		role, found := ParseRole(tt.name)
		assert.Equal(t, tt.want, role, tt.name)
		assert.Equal(t, tt.found, found, tt.name)
	}
}

func TestRoleFromReferer(t *testing.T) {
	tests := []struct {
		referer string
		segment string
		role    Role
	}{
		{"https://app.dialiv.se/provider/login", "provider", RoleProvider},
		{"https://app.dialiv.se/patient", "patient", RolePatient},
		{"https://app.dialiv.se/patient/", "patient", RolePatient},
		{"https://app.dialiv.se/dashboard/users", "dashboard", RoleUndefined},
		{"https://app.dialiv.se/", "", RoleUndefined},
		{"https://app.dialiv.se", "", RoleUndefined},
	}
	for _, tt := range tests {
		segment, role, err := RoleFromReferer(tt.referer)
		require.NoError(t, err, tt.referer)
		assert.Equal(t, tt.segment, segment, tt.referer)
		assert.Equal(t, tt.role, role, tt.referer)
	}
}

func TestRoleFromReferer_Missing(t *testing.T) {
	_, _, err := RoleFromReferer("")
	assert.Error(t, err)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "provider", RoleProvider.String())
	assert.Equal(t, "role(7)", Role(7).String())
	assert.True(t, RolePatient.IsValid())
	assert.False(t, RoleUndefined.IsValid())
}

func TestSharingBind(t *testing.T) {
	sharing := &Sharing{Id: 1, UserId: 2, Email: "doc@y.com"}
	assert.False(t, sharing.IsBound())

	sharing.Bind(3, 4)
	require.True(t, sharing.IsBound())
	assert.Equal(t, int64(3), *sharing.ProviderId)
	assert.Equal(t, int64(4), *sharing.TwilioChatChannelId)

	sharing.Unbind()
	assert.False(t, sharing.IsBound())
	assert.Nil(t, sharing.TwilioChatChannelId)
}

func TestHasRole(t *testing.T) {
	roles := []*UserRole{{UserId: 1, RoleId: RolePatient}}
	assert.True(t, HasRole(roles, RolePatient))
	assert.False(t, HasRole(roles, RoleProvider))
	assert.False(t, HasRole(nil, RolePatient))
}
