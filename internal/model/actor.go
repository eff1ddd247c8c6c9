package model

import "strings"

// Role is the caller's role as asserted by the identity provider.
type Role string

const (
	RoleStudent   Role = "Student"
	RoleProfessor Role = "Professor"
	RoleAdmin     Role = "Admin"
)

// ParseRole accepts the canonical role names in any letter case.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return RoleStudent, true
	case "professor":
		return RoleProfessor, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

// Actor identifies who is invoking an operation.  It is always passed
// explicitly; the core never reads ambient session state.
type Actor struct {
	UserID uint64
	Role   Role
}

// IsAdmin reports whether the actor holds the Admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess reports whether the actor may see or cancel a reservation
// owned by ownerID.
func (a Actor) CanAccess(ownerID uint64) bool {
	return a.IsAdmin() || (a.UserID != 0 && a.UserID == ownerID)
}
