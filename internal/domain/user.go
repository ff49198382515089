package domain

import "time"

// Role enumerates dashboard operator roles. The string values are the
// wire values the dashboard clients send and expect back.
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleAgent      Role = "agente"
)

// IsValid reports whether the role is one of the two known variants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSupervisor, RoleAgent:
		return true
	}
	return false
}

// User is a dashboard operator: a supervisor or an agent.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
