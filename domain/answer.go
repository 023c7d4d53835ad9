package domain

import "time"

// Answer is one scored response to one question within one evaluation.
type Answer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EvaluationID uint      `gorm:"not null;uniqueIndex:idx_answer_question,priority:1" json:"evaluation_id"`
	QuestionID   uint      `gorm:"not null;uniqueIndex:idx_answer_question,priority:2" json:"question_id"`
	Score        float64   `gorm:"type:decimal(6,2);not null" json:"score"`
	Comment      string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnswerInput is one entry of an answer submission.
type AnswerInput struct {
	QuestionID uint     `json:"question_id"`
	Score      *float64 `json:"score"`
	Comment    string   `json:"comment"`
}
