package usecase

import (
	"context"

	"github.com/sirupsen/logrus"

	"hr-evaluator/domain"
)

// RoutingStore is the routing table plus its maintenance operations.
type RoutingStore interface {
	domain.RoutingTable
	ActiveSetup(ctx context.Context, departmentID uint) (*domain.EvaluatorSetup, error)
	Configure(ctx context.Context, setup domain.EvaluatorSetup) (*domain.EvaluatorSetup, error)
}

// RoutingService maintains the per-department evaluator setup. Changes never
// touch evaluations already created.
type RoutingService struct {
	store  RoutingStore
	people func(ctx context.Context, id uint) (*domain.Person, error)
	log    logrus.FieldLogger
}

func NewRoutingService(store RoutingStore, svc *EvaluationService) *RoutingService {
	return &RoutingService{
		store: store,
		people: func(ctx context.Context, id uint) (*domain.Person, error) {
			return loadPerson(svc.db.WithContext(ctx), id)
		},
		log: svc.log,
	}
}

func (r *RoutingService) GetRouting(ctx context.Context, caller domain.Caller, departmentID uint) (*domain.EvaluatorSetup, error) {
	if !caller.Role.Elevated() {
		return nil, domain.Forbidden("only admin or HR may read evaluator setups")
	}
	return r.store.ActiveSetup(ctx, departmentID)
}

// ConfigureRouting replaces the active setup of a department.
func (r *RoutingService) ConfigureRouting(ctx context.Context, caller domain.Caller, departmentID uint, route domain.Route) (*domain.EvaluatorSetup, error) {
	if !caller.Role.Elevated() {
		return nil, domain.Forbidden("only admin or HR may configure evaluator setups")
	}
	var v domain.Violations
	if departmentID == 0 {
		v.Add("department_id", "is required")
	}
	for _, p := range []struct {
		field string
		id    uint
	}{
		{"evaluator_id", route.EvaluatorID},
		{"reviewer_id", route.ReviewerID},
		{"manager_id", route.ManagerID},
	} {
		if p.id == 0 {
			v.Add(p.field, "is required")
			continue
		}
		person, err := r.people(ctx, p.id)
		switch {
		case domain.KindOf(err) == domain.KindNotFound:
			v.Add(p.field, "person %d does not exist", p.id)
		case err != nil:
			return nil, err
		case !person.Active:
			v.Add(p.field, "person %d is inactive", p.id)
		}
	}
	if err := v.Err("invalid evaluator setup"); err != nil {
		return nil, err
	}
	setup, err := r.store.Configure(ctx, domain.EvaluatorSetup{
		DepartmentID: departmentID,
		EvaluatorID:  route.EvaluatorID,
		ReviewerID:   route.ReviewerID,
		ManagerID:    route.ManagerID,
		CreatedBy:    caller.ID,
	})
	if err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"department_id": departmentID,
		"setup_id":      setup.ID,
		"actor_id":      caller.ID,
	}).Info("evaluator setup configured")
	return setup, nil
}
