// Package policy holds the authorization rules consulted before every
// state mutation. Functions are pure; callers load whatever records the
// rules need.
package policy

import (
	"errors"
	"slices"

	"github.com/Skotchmaster/foodshop/internal/models"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrRoleNotAllowed     = errors.New("role not allowed")
	ErrProtected          = errors.New("protected account")
	ErrRequiresSuperAdmin = errors.New("requires super admin")
	ErrSelfModification   = errors.New("self modification")
)

// Session is the identity attached to a request. A nil *Session is an
// anonymous caller.
type Session struct {
	UserID     uint
	Role       models.Role
	Approved   bool
	SuperAdmin bool
	// Token is the opaque session token; it keys the cart.
	Token string
}

func IsAuthenticated(s *Session) bool {
	return s != nil && s.UserID != 0
}

func HasRole(s *Session, roles ...models.Role) bool {
	return IsAuthenticated(s) && slices.Contains(roles, s.Role)
}

func IsApprovedSupplier(s *Session) bool {
	return HasRole(s, models.RoleSupplier) && s.Approved
}

func IsSuperAdmin(u *models.User) bool {
	return u != nil && u.Role == models.RoleAdmin && u.SuperAdmin
}

// Require fails with ErrNotAuthenticated for anonymous sessions and with
// ErrRoleNotAllowed when the role is not one of roles.
func Require(s *Session, roles ...models.Role) error {
	if !IsAuthenticated(s) {
		return ErrNotAuthenticated
	}
	if !slices.Contains(roles, s.Role) {
		return ErrRoleNotAllowed
	}
	return nil
}

// CanChangeRole checks, in order: target is SuperAdmin, promotion to admin by
// a non-SuperAdmin, target is the actor.
func CanChangeRole(actor, target *models.User, newRole models.Role) error {
	if IsSuperAdmin(target) {
		return ErrProtected
	}
	if newRole == models.RoleAdmin && !IsSuperAdmin(actor) {
		return ErrRequiresSuperAdmin
	}
	if actor.ID == target.ID {
		return ErrSelfModification
	}
	return nil
}

// CanDelete checks, in order: target is the actor, target is SuperAdmin,
// target is an admin and the actor is not SuperAdmin.
func CanDelete(actor, target *models.User) error {
	if actor.ID == target.ID {
		return ErrSelfModification
	}
	if IsSuperAdmin(target) {
		return ErrProtected
	}
	if target.Role == models.RoleAdmin && !IsSuperAdmin(actor) {
		return ErrRequiresSuperAdmin
	}
	return nil
}
