package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"hr-evaluator/domain"
)

// RoutingRepository is the gorm-backed evaluator routing table.
type RoutingRepository struct {
	DB *gorm.DB
}

func NewRoutingRepository(db *gorm.DB) *RoutingRepository {
	return &RoutingRepository{DB: db}
}

func (r *RoutingRepository) ActiveSetup(ctx context.Context, departmentID uint) (*domain.EvaluatorSetup, error) {
	var setup domain.EvaluatorSetup
	err := r.DB.WithContext(ctx).
		Where("department_id = ? AND active = ?", departmentID, true).
		Order("id DESC").
		First(&setup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.RoutingNotConfigured(departmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load evaluator setup of department %d: %w", departmentID, err)
	}
	return &setup, nil
}

func (r *RoutingRepository) LookupRouting(ctx context.Context, departmentID uint) (domain.Route, error) {
	setup, err := r.ActiveSetup(ctx, departmentID)
	if err != nil {
		return domain.Route{}, err
	}
	return domain.Route{
		EvaluatorID: setup.EvaluatorID,
		ReviewerID:  setup.ReviewerID,
		ManagerID:   setup.ManagerID,
	}, nil
}

// Configure deactivates the department's current row and inserts setup as the
// new active row.
func (r *RoutingRepository) Configure(ctx context.Context, setup domain.EvaluatorSetup) (*domain.EvaluatorSetup, error) {
	setup.ID = 0
	setup.Active = true
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.EvaluatorSetup{}).
			Where("department_id = ? AND active = ?", setup.DepartmentID, true).
			Update("active", false).Error
		if err != nil {
			return fmt.Errorf("deactivate evaluator setup of department %d: %w", setup.DepartmentID, err)
		}
		if err := tx.Create(&setup).Error; err != nil {
			return fmt.Errorf("create evaluator setup of department %d: %w", setup.DepartmentID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &setup, nil
}
