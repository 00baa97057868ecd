package authority

import (
	"strings"
)

const (
	// RoleWorkflowAdmin may manage workflow configs and run escalation sweeps.
	RoleWorkflowAdmin = "workflow:admin"
	RoleSystem        = "system:robot"
)

type Permissions []string

func (c Permissions) HasRole(role string) bool {
	for _, v := range c {
		if strings.EqualFold(v, role) {
			return true
		}
	}
	return false
}

func (c Permissions) HasRolePrefix(prefix string) bool {
	for _, v := range c {
		if strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func (c Permissions) IsWorkflowAdmin() bool {
	return c.HasRole(RoleWorkflowAdmin) || c.HasRole(RoleSystem)
}
