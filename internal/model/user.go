package model

import (
	"fmt"
	"time"
)

// User represents an authentication and authorization principal.
type User struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleUser            = "user"
	RoleSecurityGuard   = "securityGuard"
	RoleSecurityOfficer = "securityOfficer"
	RoleAdmin           = "admin"
)

// Roles lists every valid role.
var Roles = []string{RoleUser, RoleSecurityGuard, RoleSecurityOfficer, RoleAdmin}

// ValidRole reports whether role is one of the four known roles.
func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Staff reports whether the role belongs to security staff or an admin.
// Staff intake of found items skips the submitted stage.
func Staff(role string) bool {
	return role == RoleSecurityGuard || role == RoleSecurityOfficer || role == RoleAdmin
}

// ValidatePassword checks minimum password requirements.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}
