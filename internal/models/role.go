package models

import "github.com/anonto42/career-hub/backend/internal/store"

// Role is a privilege level. The empty Role is the null role of a guest or
// of a session whose role is not resolved yet.
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UsersCollection holds one role record per user id.
const UsersCollection = "users"

// Privileged reports whether r may mutate blogs and courses.
func (r Role) Privileged() bool { return r == RoleAdmin }

// SessionRole is the single live role value of a session.
type SessionRole struct {
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	Resolved bool   `json:"resolved"`
}

// Privileged is false until the role is resolved.
func (s SessionRole) Privileged() bool {
	return s.Resolved && s.UserID != "" && s.Role.Privileged()
}

// DecodeRoleRecord reads users/{uid}. A record without a role field is a
// plain user.
func DecodeRoleRecord(doc store.Document) (Role, error) {
	r := newReader(UsersCollection, doc)
	role := Role(r.str("role", false))
	if r.err != nil {
		return RoleUser, r.err
	}
	if role == RoleNone {
		return RoleUser, nil
	}
	return role, nil
}
