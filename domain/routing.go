package domain

import (
	"context"
	"time"
)

// EvaluatorSetup routes a department to its three approvers. Only one row per
// department is active at a time.
type EvaluatorSetup struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DepartmentID uint      `gorm:"not null;index" json:"department_id"`
	EvaluatorID  uint      `gorm:"not null" json:"evaluator_id"`
	ReviewerID   uint      `gorm:"not null" json:"reviewer_id"`
	ManagerID    uint      `gorm:"not null" json:"manager_id"`
	Active       bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedBy    uint      `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Route is the approver triple resolved for a department.
type Route struct {
	EvaluatorID uint
	ReviewerID  uint
	ManagerID   uint
}

// RoutingTable resolves a department to its approvers. It returns an error of
// kind KindRoutingNotConfigured when no active row exists.
type RoutingTable interface {
	LookupRouting(ctx context.Context, departmentID uint) (Route, error)
}
