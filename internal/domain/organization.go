package domain

import (
	"time"
)

// Organization verification states.
const (
	OrgStatusPending  = "PENDING"
	OrgStatusVerified = "VERIFIED"
	OrgStatusRejected = "REJECTED"
)

// Organization membership roles.
const (
	OrgRoleOwner  = "OWNER"
	OrgRoleAdmin  = "ADMIN"
	OrgRoleMember = "MEMBER"
)

// Organization represents a tenant that users can belong to.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Verified reports whether the organization passed verification.
func (o *Organization) IsVerified() bool {
	return o.Status == OrgStatusVerified
}

// OrganizationMember links a user to an organization with a membership role.
type OrganizationMember struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// CanManage reports whether the member may administer organization resources.
func (m *OrganizationMember) CanManage() bool {
	return m.Role == OrgRoleOwner || m.Role == OrgRoleAdmin
}
