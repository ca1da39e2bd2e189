package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidRoles_ContainsAll(t *testing.T) {
	roles := ValidRoles()
	expected := []string{RoleUser, RoleModerator, RoleAdmin}
	assert.ElementsMatch(t, expected, roles)
}

func TestIsValidRole_ValidRoles(t *testing.T) {
	for _, r := range ValidRoles() {
		assert.True(t, IsValidRole(r), "expected %q to be valid", r)
	}
}

func TestIsValidRole_Invalid(t *testing.T) {
	assert.False(t, IsValidRole("unknown"))
	assert.False(t, IsValidRole(""))
	assert.False(t, IsValidRole("admin"))
	assert.False(t, IsValidRole("superadmin"))
}

func TestSessionToken_Expired(t *testing.T) {
	now := time.Now()
	s := SessionToken{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(2*time.Hour)))
}

func TestOneTimeCode_Expired(t *testing.T) {
	now := time.Now()
	c := OneTimeCode{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, c.Expired(now))
}

func TestOrganization_IsVerified(t *testing.T) {
	assert.True(t, (&Organization{Status: OrgStatusVerified}).IsVerified())
	assert.False(t, (&Organization{Status: OrgStatusPending}).IsVerified())
	assert.False(t, (&Organization{Status: OrgStatusRejected}).IsVerified())
}

func TestOrganizationMember_CanManage(t *testing.T) {
	assert.True(t, (&OrganizationMember{Role: OrgRoleOwner}).CanManage())
	assert.True(t, (&OrganizationMember{Role: OrgRoleAdmin}).CanManage())
	assert.False(t, (&OrganizationMember{Role: OrgRoleMember}).CanManage())
}
