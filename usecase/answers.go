package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"hr-evaluator/domain"
)

// SubmitAnswers replaces the whole answer set of an evaluation. The old set is
// deleted and the new one inserted in the same transaction, and the
// evaluation version is bumped so a concurrent approval cannot interleave.
func (s *EvaluationService) SubmitAnswers(ctx context.Context, id uint, caller domain.Caller, inputs []domain.AnswerInput) ([]domain.Answer, error) {
	var saved []domain.Answer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvaluation(tx, id)
		if err != nil {
			return err
		}
		if !caller.Role.Elevated() && caller.ID != ev.EvaluatorID {
			return domain.Forbidden("caller %d is not the evaluator of evaluation %d", caller.ID, id)
		}
		if !ev.Status.AnswersEditable() {
			return domain.Conflict("answers of evaluation %d cannot change while %s", id, ev.Status)
		}
		if err := validateAnswers(tx, ev, inputs); err != nil {
			return err
		}

		if err := tx.Where("evaluation_id = ?", id).Delete(&domain.Answer{}).Error; err != nil {
			return fmt.Errorf("clear answers of evaluation %d: %w", id, err)
		}
		now := s.now()
		saved = make([]domain.Answer, 0, len(inputs))
		for _, in := range inputs {
			saved = append(saved, domain.Answer{
				EvaluationID: id,
				QuestionID:   in.QuestionID,
				Score:        *in.Score,
				Comment:      in.Comment,
				CreatedAt:    now,
			})
		}
		if err := tx.Create(&saved).Error; err != nil {
			return fmt.Errorf("insert answers of evaluation %d: %w", id, err)
		}
		return writeEvaluation(tx, ev, map[string]any{}, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"evaluation_id": id,
		"answers":       len(saved),
		"actor_id":      caller.ID,
	}).Info("answers replaced")
	return saved, nil
}

// validateAnswers collects every problem of the submission.
func validateAnswers(tx *gorm.DB, ev *domain.Evaluation, inputs []domain.AnswerInput) error {
	if len(inputs) == 0 {
		return domain.Invalid("invalid answers", domain.Violation{Field: "answers", Message: "at least one answer is required"})
	}

	ids := make([]uint, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.QuestionID)
	}
	var questions []domain.Question
	if err := tx.Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[uint]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var inTemplate map[uint]bool
	if ev.TemplateID != nil {
		var categoryIDs []uint
		if err := tx.Model(&domain.Category{}).Where("template_id = ?", *ev.TemplateID).Pluck("id", &categoryIDs).Error; err != nil {
			return fmt.Errorf("load template categories: %w", err)
		}
		inTemplate = make(map[uint]bool, len(categoryIDs))
		for _, c := range categoryIDs {
			inTemplate[c] = true
		}
	}

	var v domain.Violations
	seen := make(map[uint]bool, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("answers[%d]", i)
		if in.QuestionID == 0 {
			v.Add(field+".question_id", "is required")
			continue
		}
		if seen[in.QuestionID] {
			v.Add(field+".question_id", "question %d answered more than once", in.QuestionID)
			continue
		}
		seen[in.QuestionID] = true
		q, ok := byID[in.QuestionID]
		if !ok {
			v.Add(field+".question_id", "question %d does not exist", in.QuestionID)
			continue
		}
		if inTemplate != nil && !inTemplate[q.CategoryID] {
			v.Add(field+".question_id", "question %d is not part of template %d", q.ID, *ev.TemplateID)
		}
		switch {
		case in.Score == nil:
			v.Add(field+".score", "is required")
		case math.IsNaN(*in.Score) || math.IsInf(*in.Score, 0):
			v.Add(field+".score", "must be a finite number")
		case !q.InRange(*in.Score):
			v.Add(field+".score", "%g is outside [%g, %g] for question %d", *in.Score, q.MinScore, q.MaxScore, q.ID)
		}
	}
	return v.Err("invalid answers")
}
