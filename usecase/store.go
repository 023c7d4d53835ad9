package usecase

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hr-evaluator/domain"
)

func loadEvaluation(tx *gorm.DB, id uint) (*domain.Evaluation, error) {
	var ev domain.Evaluation
	if err := tx.First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("evaluation", id)
		}
		return nil, fmt.Errorf("load evaluation %d: %w", id, err)
	}
	return &ev, nil
}

// writeEvaluation applies fields only if nobody else wrote the row since ev was
// read. A lost race surfaces as a retryable state conflict.
func writeEvaluation(tx *gorm.DB, ev *domain.Evaluation, fields map[string]any, now time.Time) error {
	fields["version"] = ev.Version + 1
	fields["updated_at"] = now
	res := tx.Model(&domain.Evaluation{}).
		Where("id = ? AND version = ?", ev.ID, ev.Version).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update evaluation %d: %w", ev.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.StaleWrite(ev.ID)
	}
	return nil
}

func appendHistory(tx *gorm.DB, ev *domain.Evaluation, to domain.Status, actor uint, action, reason string, now time.Time) error {
	h := domain.EvaluationHistory{
		EvaluationID: ev.ID,
		FromStatus:   ev.Status,
		ToStatus:     to,
		ActorID:      actor,
		Action:       action,
		Reason:       reason,
		CreatedAt:    now,
	}
	if err := tx.Create(&h).Error; err != nil {
		return fmt.Errorf("record history for evaluation %d: %w", ev.ID, err)
	}
	return nil
}

func loadPerson(tx *gorm.DB, id uint) (*domain.Person, error) {
	var p domain.Person
	if err := tx.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("person", id)
		}
		return nil, fmt.Errorf("load person %d: %w", id, err)
	}
	return &p, nil
}

// scoredAnswers joins the evaluation's answers with their question scales.
func scoredAnswers(tx *gorm.DB, evaluationID uint) ([]domain.ScoredAnswer, error) {
	var rows []domain.ScoredAnswer
	err := tx.Table("answers").
		Select("answers.score AS score, questions.max_score AS max_score, questions.weight AS weight").
		Joins("JOIN questions ON questions.id = answers.question_id").
		Where("answers.evaluation_id = ?", evaluationID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load answers of evaluation %d: %w", evaluationID, err)
	}
	return rows, nil
}
