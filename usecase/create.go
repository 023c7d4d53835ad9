package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"hr-evaluator/domain"
)

const (
	minYear = 2000
	maxYear = 2100
)

type CreateRequest struct {
	Year                int
	Period              domain.Period
	EvalueeIDs          []uint
	AllowSelfEvaluation bool
	TemplateID          *uint
}

// CreationFailure explains why one evaluee of a batch was skipped.
type CreationFailure struct {
	EvalueeID uint        `json:"evaluee_id"`
	Kind      domain.Kind `json:"kind"`
	Reason    string      `json:"reason"`
}

type CreateResult struct {
	Created []domain.Evaluation `json:"created"`
	Failed  []CreationFailure   `json:"failed"`
}

// CreateEvaluations opens one evaluation per evaluee. Each evaluee is handled
// in its own transaction, so a failure is reported without undoing siblings.
func (s *EvaluationService) CreateEvaluations(ctx context.Context, caller domain.Caller, req CreateRequest) (*CreateResult, error) {
	if !caller.Role.Elevated() && caller.Role != domain.RoleEvaluator {
		return nil, domain.Forbidden("role %s may not create evaluations", caller.Role)
	}
	if err := s.validateCreate(ctx, req); err != nil {
		return nil, err
	}

	result := &CreateResult{Created: []domain.Evaluation{}, Failed: []CreationFailure{}}
	var notes []domain.Notification
	seen := make(map[uint]bool, len(req.EvalueeIDs))
	for _, evalueeID := range req.EvalueeIDs {
		if seen[evalueeID] {
			continue
		}
		seen[evalueeID] = true

		ev, err := s.createOne(ctx, caller, req, evalueeID)
		if err != nil {
			kind := domain.KindOf(err)
			if kind == domain.KindInternal {
				s.log.WithField("evaluee_id", evalueeID).WithError(err).Error("create evaluation failed")
			}
			result.Failed = append(result.Failed, CreationFailure{EvalueeID: evalueeID, Kind: kind, Reason: err.Error()})
			continue
		}
		result.Created = append(result.Created, *ev)
		notes = append(notes, domain.NewNotification(domain.NotifyNewCycleCreated, ev.EvaluatorID, ev, s.now()))
		if ev.AllowSelfEvaluation {
			notes = append(notes, domain.NewNotification(domain.NotifyNewCycleCreated, ev.EvalueeID, ev, s.now()))
		}
	}

	s.recorder.BatchResult(len(result.Created), len(result.Failed))
	s.log.WithFields(logrus.Fields{
		"year":       req.Year,
		"period":     req.Period,
		"created":    len(result.Created),
		"failed":     len(result.Failed),
		"creator_id": caller.ID,
	}).Info("evaluation batch created")
	s.dispatch(ctx, notes)
	return result, nil
}

func (s *EvaluationService) validateCreate(ctx context.Context, req CreateRequest) error {
	var v domain.Violations
	if req.Year < minYear || req.Year > maxYear {
		v.Add("year", "must be between %d and %d", minYear, maxYear)
	}
	if !req.Period.Valid() {
		v.Add("period", "unknown period %q", req.Period)
	}
	if len(req.EvalueeIDs) == 0 {
		v.Add("evaluee_ids", "at least one evaluee is required")
	}
	for i, id := range req.EvalueeIDs {
		if id == 0 {
			v.Add(fmt.Sprintf("evaluee_ids[%d]", i), "must be a person id")
		}
	}
	if req.TemplateID != nil {
		var tpl domain.EvaluationTemplate
		err := s.db.WithContext(ctx).First(&tpl, *req.TemplateID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			v.Add("template_id", "template %d does not exist", *req.TemplateID)
		case err != nil:
			return fmt.Errorf("load template %d: %w", *req.TemplateID, err)
		case !tpl.Active:
			v.Add("template_id", "template %d is inactive", *req.TemplateID)
		}
	}
	return v.Err("invalid evaluation batch")
}

func (s *EvaluationService) createOne(ctx context.Context, caller domain.Caller, req CreateRequest, evalueeID uint) (*domain.Evaluation, error) {
	db := s.db.WithContext(ctx)
	evaluee, err := loadPerson(db, evalueeID)
	if err != nil {
		return nil, err
	}
	if !evaluee.Active {
		return nil, domain.Invalid(fmt.Sprintf("person %d is inactive", evalueeID))
	}
	if evaluee.DepartmentID == nil {
		return nil, domain.Invalid(fmt.Sprintf("person %d has no department", evalueeID))
	}
	// Routing is resolved once and copied into the record.
	route, err := s.routing.LookupRouting(ctx, *evaluee.DepartmentID)
	if err != nil {
		return nil, err
	}
	evaluatorID := route.EvaluatorID
	if caller.Role == domain.RoleEvaluator {
		evaluatorID = caller.ID
	}

	ev := &domain.Evaluation{
		Year:                req.Year,
		Period:              req.Period,
		EvalueeID:           evalueeID,
		EvaluatorID:         evaluatorID,
		ReviewerID:          route.ReviewerID,
		ManagerID:           route.ManagerID,
		TemplateID:          req.TemplateID,
		AllowSelfEvaluation: req.AllowSelfEvaluation,
		Status:              domain.InitialStatus(req.AllowSelfEvaluation),
		Version:             1,
		CreatedBy:           caller.ID,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&domain.Evaluation{}).
			Where("evaluee_id = ? AND year = ? AND period = ?", evalueeID, req.Year, req.Period).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("check duplicate cycle: %w", err)
		}
		if n > 0 {
			return domain.Conflict("person %d already has an evaluation for %d %s", evalueeID, req.Year, req.Period)
		}
		if err := tx.Create(ev).Error; err != nil {
			return fmt.Errorf("create evaluation for person %d: %w", evalueeID, err)
		}
		now := s.now()
		created := *ev
		created.Status = ""
		return appendHistory(tx, &created, ev.Status, caller.ID, domain.ActionCreate, "", now)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}
