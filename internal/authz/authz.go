// Package authz decides whether a principal may modify a resource.
package authz

import (
	"fmt"

	"chronicle/internal/models"
)

// Principal is the authenticated caller.
type Principal struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// FromUser builds a Principal from a stored user.
func FromUser(u *models.User) Principal {
	return Principal{ID: u.ID, Role: u.Role}
}

// CanModify returns true for admins and for the resource owner.
func CanModify(p Principal, ownerID uint) bool {
	if p.IsAdmin() {
		return true
	}
	return p.ID != 0 && p.ID == ownerID
}

// Authorize returns a FORBIDDEN error unless CanModify holds.
// action and resource build the message, e.g. "update" and "post".
func Authorize(p Principal, ownerID uint, action, resource string) error {
	if CanModify(p, ownerID) {
		return nil
	}
	return models.NewForbiddenError(fmt.Sprintf("Not authorized to %s this %s", action, resource))
}
