package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"hr-evaluator/domain"
)

// outcome is what a stage handler wants written.
type outcome struct {
	fields map[string]any
	to     domain.Status
	action string
	reason string
	notes  []domain.Notification
}

func (o *outcome) empty() bool {
	return len(o.fields) == 0
}

type transitionKey struct {
	status domain.Status
	stage  domain.Stage
}

type stageHandler func(s *EvaluationService, tx *gorm.DB, ev *domain.Evaluation, p domain.StagePayload) (*outcome, error)

// stageHandlers is the dispatch table for approver payloads. A (status, stage)
// pair missing here is a state conflict.
var stageHandlers = map[transitionKey]stageHandler{
	{domain.StatusSelfEvaluating, domain.StageSelf}:           handleSelf,
	{domain.StatusEvaluatorEvaluating, domain.StageEvaluator}: handleEvaluator,
	{domain.StatusRejected, domain.StageEvaluator}:            handleEvaluator,
	{domain.StatusReviewerReviewing, domain.StageReviewer}:    handleReviewer,
	{domain.StatusManagerReviewing, domain.StageManager}:      handleManager,
}

// Transition applies exactly one stage action to the evaluation.
func (s *EvaluationService) Transition(ctx context.Context, id uint, caller domain.Caller, payload domain.StagePayload) (*domain.Evaluation, error) {
	if payload == nil {
		return nil, domain.Invalid("stage payload is required")
	}
	var (
		updated *domain.Evaluation
		from    domain.Status
		result  *outcome
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvaluation(tx, id)
		if err != nil {
			return err
		}
		from = ev.Status

		if edit, ok := payload.(domain.AdminEdit); ok {
			if !caller.Role.Elevated() {
				return domain.Forbidden("only admin or HR may edit evaluation %d directly", id)
			}
			result, err = s.adminEdit(tx, ev, edit)
		} else {
			stage := payload.Stage()
			if !caller.Role.Elevated() && ev.StageActor(stage) != caller.ID {
				return domain.Forbidden("caller %d is not the %s of evaluation %d", caller.ID, stage, id)
			}
			handler, ok := stageHandlers[transitionKey{ev.Status, stage}]
			if !ok {
				return domain.Conflict("evaluation %d is %s; the %s stage cannot act", id, ev.Status, stage)
			}
			result, err = handler(s, tx, ev, payload)
		}
		if err != nil {
			return err
		}

		if result.empty() {
			if caller.Role.Elevated() {
				updated = ev
				return nil
			}
			return domain.Invalid("nothing to update")
		}
		if result.to == "" {
			result.to = ev.Status
		}
		if result.to != ev.Status {
			result.fields["status"] = result.to
		}
		now := s.now()
		if err := writeEvaluation(tx, ev, result.fields, now); err != nil {
			return err
		}
		if result.action != domain.ActionComment {
			if err := appendHistory(tx, ev, result.to, caller.ID, result.action, result.reason, now); err != nil {
				return err
			}
		}
		updated, err = loadEvaluation(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result != nil && !result.empty() {
		if result.to != from {
			s.recorder.TransitionApplied(from, result.to)
		}
		s.log.WithFields(logrus.Fields{
			"evaluation_id": id,
			"from":          from,
			"to":            result.to,
			"action":        result.action,
			"actor_id":      caller.ID,
		}).Info("evaluation updated")
		s.dispatch(ctx, result.notes)
	}
	return updated, nil
}

func handleSelf(s *EvaluationService, _ *gorm.DB, ev *domain.Evaluation, p domain.StagePayload) (*outcome, error) {
	sub := p.(domain.SelfSubmission)
	out := &outcome{fields: map[string]any{}, action: domain.ActionComment}
	if sub.Comment != nil {
		out.fields["self_comment"] = *sub.Comment
	}
	if sub.Submitted {
		out.action = domain.ActionSubmit
		out.to, _ = domain.NextStatus(ev.Status, domain.StageSelf, domain.ActionSubmit)
		out.fields["self_submitted_at"] = s.now()
		out.notes = append(out.notes, domain.NewNotification(domain.NotifyReviewRequested, ev.EvaluatorID, ev, s.now()))
	}
	return out, nil
}

func handleEvaluator(s *EvaluationService, _ *gorm.DB, ev *domain.Evaluation, p domain.StagePayload) (*outcome, error) {
	d, _ := domain.DecisionOf(p)
	out := &outcome{fields: map[string]any{}, action: d.Action()}
	if d.Comment != nil {
		out.fields["evaluator_comment"] = *d.Comment
	}
	switch out.action {
	case domain.ActionReject:
		return nil, domain.Invalid("evaluator cannot reject",
			domain.Violation{Field: "evaluator_approved", Message: "must be true or omitted"})
	case domain.ActionApprove:
		out.to, _ = domain.NextStatus(ev.Status, domain.StageEvaluator, domain.ActionApprove)
		out.fields["evaluator_approved"] = true
		out.fields["reviewer_approved"] = nil
		out.notes = append(out.notes, domain.NewNotification(domain.NotifyReviewRequested, ev.ReviewerID, ev, s.now()))
	}
	return out, nil
}

func handleReviewer(s *EvaluationService, _ *gorm.DB, ev *domain.Evaluation, p domain.StagePayload) (*outcome, error) {
	d, _ := domain.DecisionOf(p)
	out := &outcome{fields: map[string]any{}, action: d.Action()}
	if d.Comment != nil {
		out.fields["reviewer_comment"] = *d.Comment
	}
	switch out.action {
	case domain.ActionApprove:
		out.to, _ = domain.NextStatus(ev.Status, domain.StageReviewer, domain.ActionApprove)
		out.fields["reviewer_approved"] = true
		out.fields["reviewer_rejected_reason"] = ""
		out.fields["manager_approved"] = nil
		out.notes = append(out.notes, domain.NewNotification(domain.NotifyReviewRequested, ev.ManagerID, ev, s.now()))
	case domain.ActionReject:
		if d.Reason == "" {
			return nil, domain.Invalid("rejection requires a reason",
				domain.Violation{Field: "reviewer_rejected_reason", Message: "is required when rejecting"})
		}
		out.to, _ = domain.NextStatus(ev.Status, domain.StageReviewer, domain.ActionReject)
		out.reason = d.Reason
		out.fields["reviewer_approved"] = false
		out.fields["reviewer_rejected_reason"] = d.Reason
		out.fields["evaluator_approved"] = nil
		n := domain.NewNotification(domain.NotifyRejectedReturned, ev.EvaluatorID, ev, s.now())
		n.Reason = d.Reason
		out.notes = append(out.notes, n)
	}
	return out, nil
}

func handleManager(s *EvaluationService, tx *gorm.DB, ev *domain.Evaluation, p domain.StagePayload) (*outcome, error) {
	d, _ := domain.DecisionOf(p)
	out := &outcome{fields: map[string]any{}, action: d.Action()}
	if d.Comment != nil {
		out.fields["manager_comment"] = *d.Comment
	}
	switch out.action {
	case domain.ActionApprove:
		answers, err := scoredAnswers(tx, ev.ID)
		if err != nil {
			return nil, err
		}
		score, grade := domain.FinalResult(s.aggregator, answers)
		now := s.now()
		out.to, _ = domain.NextStatus(ev.Status, domain.StageManager, domain.ActionApprove)
		out.fields["manager_approved"] = true
		out.fields["manager_rejected_reason"] = ""
		out.fields["final_score"] = score
		out.fields["final_grade"] = grade
		out.fields["completed_at"] = now

		result := domain.NewNotification(domain.NotifyResultReady, ev.EvalueeID, ev, now)
		result.FinalScore = &score
		result.FinalGrade = grade
		admin := domain.NewNotification(domain.NotifyResultReady, domain.AdminChannel, ev, now)
		admin.FinalScore = &score
		admin.FinalGrade = grade
		out.notes = append(out.notes, result, admin)
	case domain.ActionReject:
		if d.Reason == "" {
			return nil, domain.Invalid("rejection requires a reason",
				domain.Violation{Field: "manager_rejected_reason", Message: "is required when rejecting"})
		}
		out.to, _ = domain.NextStatus(ev.Status, domain.StageManager, domain.ActionReject)
		out.reason = d.Reason
		out.fields["manager_approved"] = false
		out.fields["manager_rejected_reason"] = d.Reason
		out.fields["reviewer_approved"] = nil
		n := domain.NewNotification(domain.NotifyRejectedReturned, ev.ReviewerID, ev, s.now())
		n.Reason = d.Reason
		out.notes = append(out.notes, n)
	}
	return out, nil
}

// adminEdit validates and applies direct field edits. No side effects follow.
func (s *EvaluationService) adminEdit(tx *gorm.DB, ev *domain.Evaluation, edit domain.AdminEdit) (*outcome, error) {
	out := &outcome{fields: map[string]any{}, action: domain.ActionEdit, to: ev.Status}
	if edit.Empty() {
		return out, nil
	}
	var v domain.Violations
	year, period, evaluee := ev.Year, ev.Period, ev.EvalueeID
	if edit.Year != nil {
		if *edit.Year < minYear || *edit.Year > maxYear {
			v.Add("year", "must be between %d and %d", minYear, maxYear)
		}
		year = *edit.Year
		out.fields["year"] = year
	}
	if edit.Period != nil {
		if !edit.Period.Valid() {
			v.Add("period", "unknown period %q", *edit.Period)
		}
		period = *edit.Period
		out.fields["period"] = period
	}
	if edit.Status != nil {
		if _, err := domain.ParseStatus(string(*edit.Status)); err != nil {
			v.Add("status", "%v", err)
		}
		out.to = *edit.Status
	}
	if edit.AllowSelfEvaluation != nil {
		out.fields["allow_self_evaluation"] = *edit.AllowSelfEvaluation
	}
	people := []struct {
		field  string
		column string
		id     *uint
	}{
		{"evaluee_id", "evaluee_id", edit.EvalueeID},
		{"evaluator_id", "evaluator_id", edit.EvaluatorID},
		{"reviewer_id", "reviewer_id", edit.ReviewerID},
		{"manager_id", "manager_id", edit.ManagerID},
	}
	for _, p := range people {
		if p.id == nil {
			continue
		}
		if _, err := loadPerson(tx, *p.id); err != nil {
			if domain.KindOf(err) != domain.KindNotFound {
				return nil, err
			}
			v.Add(p.field, "person %d does not exist", *p.id)
		}
		out.fields[p.column] = *p.id
	}
	if edit.EvalueeID != nil {
		evaluee = *edit.EvalueeID
	}
	if edit.Year != nil || edit.Period != nil || edit.EvalueeID != nil {
		var n int64
		err := tx.Model(&domain.Evaluation{}).
			Where("evaluee_id = ? AND year = ? AND period = ? AND id <> ?", evaluee, year, period, ev.ID).
			Count(&n).Error
		if err != nil {
			return nil, fmt.Errorf("check duplicate cycle: %w", err)
		}
		if n > 0 {
			v.Add("period", "evaluee %d already has an evaluation for %d %s", evaluee, year, period)
		}
	}
	if err := v.Err("invalid evaluation edit"); err != nil {
		return nil, err
	}
	if out.to != ev.Status {
		out.fields["status"] = out.to
	}
	return out, nil
}
