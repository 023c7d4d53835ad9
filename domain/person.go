package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleHR        Role = "HR"
	RoleEvaluator Role = "EVALUATOR"
	RoleReviewer  Role = "REVIEWER"
	RoleManager   Role = "MANAGER"
	RoleEmployee  Role = "EMPLOYEE"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleHR, RoleEvaluator, RoleReviewer, RoleManager, RoleEmployee:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Elevated reports whether the role carries Admin/HR override rights.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleHR
}

// Caller is a resolved, trusted identity.
type Caller struct {
	ID   uint
	Role Role
}

type Person struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:255;not null" json:"name"`
	Email        string `gorm:"size:255;uniqueIndex" json:"email"`
	Role         Role   `gorm:"size:16;not null" json:"role"`
	DepartmentID *uint  `gorm:"index" json:"department_id,omitempty"`
	Active       bool   `gorm:"not null;default:true" json:"active"`
}

type Department struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:255;not null;uniqueIndex" json:"name"`
}
