package auth

import (
	"context"
	"fmt"
	"strings"
)

// Resource is a class of entity that route gates protect.
type Resource string

// Resource constants.
const (
	ResourceUsers       Resource = "users"
	ResourceProperties  Resource = "properties"
	ResourceUnits       Resource = "units"
	ResourceMaintenance Resource = "maintenance"
	ResourceProviders   Resource = "providers"
	ResourceTenants     Resource = "tenants"
)

// Action is an operation on a Resource.
type Action string

// Action constants.
const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionAssign     Action = "assign"
	ActionVerify     Action = "verify"
	ActionUpdateSelf Action = "update_self"
)

var crud = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// rolePermissions maps each role to the actions it may perform per resource.
// This is the single source of truth for the authorisation model: route
// gates derive their allowed role sets from it via AllowedRoles.
var rolePermissions = map[Role]map[Resource][]Action{
	RoleAdmin: {
		ResourceUsers:       crud,
		ResourceProperties:  crud,
		ResourceUnits:       crud,
		ResourceMaintenance: {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAssign},
		ResourceProviders:   {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionVerify},
		ResourceTenants:     {ActionRead, ActionAssign},
	},
	RoleOwner: {
		ResourceProperties:  crud,
		ResourceUnits:       crud,
		ResourceMaintenance: {ActionRead, ActionUpdate, ActionAssign},
		ResourceProviders:   {ActionRead},
		ResourceTenants:     {ActionRead, ActionAssign},
	},
	RoleSupervisor: {
		ResourceProperties:  {ActionRead},
		ResourceUnits:       {ActionRead, ActionUpdate},
		ResourceMaintenance: {ActionRead, ActionUpdate, ActionAssign},
		ResourceProviders:   {ActionRead},
	},
	RoleTenant: {
		ResourceProperties:  {ActionRead},
		ResourceUnits:       {ActionRead},
		ResourceMaintenance: {ActionCreate, ActionRead},
		ResourceProviders:   {ActionRead},
	},
	RoleProvider: {
		ResourceMaintenance: {ActionRead, ActionUpdate},
		ResourceProviders:   {ActionRead, ActionUpdateSelf},
	},
}

// HasPermission returns true if role may perform action on resource.
func HasPermission(role Role, resource Resource, action Action) bool {
	for _, a := range rolePermissions[role][resource] {
		if a == action {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the resource→actions grants for a
// role. Returns nil for unknown roles.
func PermissionsForRole(role Role) map[Resource][]Action {
	grants, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	result := make(map[Resource][]Action, len(grants))
	for res, actions := range grants {
		result[res] = append([]Action(nil), actions...)
	}
	return result
}

// AllowedRoles returns the roles permitted to perform action on resource,
// in ValidRoles order.
func AllowedRoles(resource Resource, action Action) []Role {
	var roles []Role
	for _, r := range ValidRoles {
		if HasPermission(r, resource, action) {
			roles = append(roles, r)
		}
	}
	return roles
}

// RequireRoles checks the identity attached to ctx against an allowed role
// set. It fails Forbidden when no identity is attached or when the role is
// not a member of allowed.
func RequireRoles(ctx context.Context, allowed ...Role) error {
	id := IdentityFromContext(ctx)
	if id == nil {
		return newError(ErrForbidden, "Authentication required")
	}

	for _, r := range allowed {
		if id.Role == r {
			return nil
		}
	}

	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	return newError(ErrForbidden, fmt.Sprintf("Role '%s' is not authorized. Required: %s",
		id.Role, strings.Join(names, ", ")))
}
