package models

import (
	"fmt"
	"strings"
)

// Role is a project-scoped permission level.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleProjectAdmin Role = "project_admin"
	RoleMember       Role = "member"
)

// AllRoles lists every valid role, highest first.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleProjectAdmin, RoleMember}
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleProjectAdmin, RoleMember:
		return true
	}
	return false
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}
