package domain

import "time"

// UserRole distinguishes administrators from remediation analysts.
type UserRole string

const (
	UserRoleAdmin   UserRole = "ADMIN"
	UserRoleAnalyst UserRole = "ANALYST"
)

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is an operator who can be assigned tickets and receives SLA
// notifications at Email.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
