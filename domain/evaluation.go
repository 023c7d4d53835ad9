package domain

import "time"

// Evaluation is one evaluation cycle for one evaluee in one period.
// Participant ids are copied from the routing table at creation and never
// follow later routing edits.
type Evaluation struct {
	ID                  uint   `gorm:"primaryKey" json:"id"`
	Year                int    `gorm:"not null;uniqueIndex:idx_evaluation_cycle,priority:2" json:"year"`
	Period              Period `gorm:"size:16;not null;uniqueIndex:idx_evaluation_cycle,priority:3" json:"period"`
	EvalueeID           uint   `gorm:"not null;uniqueIndex:idx_evaluation_cycle,priority:1" json:"evaluee_id"`
	EvaluatorID         uint   `gorm:"not null;index" json:"evaluator_id"`
	ReviewerID          uint   `gorm:"not null;index" json:"reviewer_id"`
	ManagerID           uint   `gorm:"not null;index" json:"manager_id"`
	TemplateID          *uint  `json:"template_id,omitempty"`
	AllowSelfEvaluation bool   `gorm:"not null;default:false" json:"allow_self_evaluation"`
	Status              Status `gorm:"size:32;not null;index" json:"status"`

	EvaluatorApproved      *bool  `json:"evaluator_approved"`
	ReviewerApproved       *bool  `json:"reviewer_approved"`
	ManagerApproved        *bool  `json:"manager_approved"`
	ReviewerRejectedReason string `gorm:"type:text" json:"reviewer_rejected_reason,omitempty"`
	ManagerRejectedReason  string `gorm:"type:text" json:"manager_rejected_reason,omitempty"`

	SelfSubmittedAt  *time.Time `json:"self_submitted_at,omitempty"`
	SelfComment      string     `gorm:"type:text" json:"self_comment,omitempty"`
	EvaluatorComment string     `gorm:"type:text" json:"evaluator_comment,omitempty"`
	ReviewerComment  string     `gorm:"type:text" json:"reviewer_comment,omitempty"`
	ManagerComment   string     `gorm:"type:text" json:"manager_comment,omitempty"`

	FinalScore  *float64   `gorm:"type:decimal(5,2)" json:"final_score,omitempty"`
	FinalGrade  Grade      `gorm:"size:4" json:"final_grade,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Version   uint      `gorm:"not null;default:1" json:"version"`
	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InitialStatus is the status a new evaluation starts in.
func InitialStatus(allowSelfEvaluation bool) Status {
	if allowSelfEvaluation {
		return StatusSelfEvaluating
	}
	return StatusEvaluatorEvaluating
}

// IsParticipant reports whether the person is one of the four bound people.
func (e *Evaluation) IsParticipant(personID uint) bool {
	return e.EvalueeID == personID || e.IsApprover(personID)
}

// IsApprover reports whether the person is the evaluator, reviewer or manager.
func (e *Evaluation) IsApprover(personID uint) bool {
	return e.EvaluatorID == personID || e.ReviewerID == personID || e.ManagerID == personID
}

// StageActor returns the person bound to the given stage.
func (e *Evaluation) StageActor(stage Stage) uint {
	switch stage {
	case StageSelf:
		return e.EvalueeID
	case StageEvaluator:
		return e.EvaluatorID
	case StageReviewer:
		return e.ReviewerID
	case StageManager:
		return e.ManagerID
	}
	return 0
}

// EvaluationHistory records one state-changing call.
type EvaluationHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EvaluationID uint      `gorm:"not null;index" json:"evaluation_id"`
	FromStatus   Status    `gorm:"size:32" json:"from_status"`
	ToStatus     Status    `gorm:"size:32;not null" json:"to_status"`
	ActorID      uint      `gorm:"not null" json:"actor_id"`
	Action       string    `gorm:"size:32;not null" json:"action"`
	Reason       string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (EvaluationHistory) TableName() string {
	return "evaluation_histories"
}
