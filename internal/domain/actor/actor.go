package actor

import (
	"errors"

	"github.com/google/uuid"
)

var ErrInvalidRole = errors.New("invalid actor role")

// Role identifies who initiated a mutating call; it is threaded through every
// command for audit logging.
type Role string

const (
	RoleUser    Role = "user"
	RoleCashier Role = "cashier"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleCashier, RoleAdmin, RoleSystem:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) String() string {
	return string(r)
}

type Actor struct {
	ID   uuid.UUID
	Role Role
}

// System is the actor recorded for supervisor-driven transitions.
func System() Actor {
	return Actor{ID: uuid.Nil, Role: RoleSystem}
}
