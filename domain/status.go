package domain

import "fmt"

type Status string

const (
	StatusPending             Status = "PENDING"
	StatusSelfEvaluating      Status = "SELF_EVALUATING"
	StatusEvaluatorEvaluating Status = "EVALUATOR_EVALUATING"
	StatusReviewerReviewing   Status = "REVIEWER_REVIEWING"
	StatusManagerReviewing    Status = "MANAGER_REVIEWING"
	StatusCompleted           Status = "COMPLETED"
	StatusRejected            Status = "REJECTED"
)

var allStatuses = []Status{
	StatusPending,
	StatusSelfEvaluating,
	StatusEvaluatorEvaluating,
	StatusReviewerReviewing,
	StatusManagerReviewing,
	StatusCompleted,
	StatusRejected,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// AnswersEditable reports whether Answers may be replaced in this status.
func (s Status) AnswersEditable() bool {
	return s == StatusEvaluatorEvaluating || s == StatusRejected
}

// Period is the enumerated label of an evaluation cycle within a year.
type Period string

const (
	PeriodQ1     Period = "Q1"
	PeriodQ2     Period = "Q2"
	PeriodQ3     Period = "Q3"
	PeriodQ4     Period = "Q4"
	PeriodH1     Period = "H1"
	PeriodH2     Period = "H2"
	PeriodAnnual Period = "ANNUAL"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodQ1, PeriodQ2, PeriodQ3, PeriodQ4, PeriodH1, PeriodH2, PeriodAnnual:
		return true
	}
	return false
}

// Stage names the party a transition payload acts for.
type Stage string

const (
	StageSelf      Stage = "self"
	StageEvaluator Stage = "evaluator"
	StageReviewer  Stage = "reviewer"
	StageManager   Stage = "manager"
	StageAdmin     Stage = "admin"
)

// Edge is one permitted status change driven by a stage action.
type Edge struct {
	From   Status
	Stage  Stage
	Action string
	To     Status
}

const (
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionComment = "comment"
	ActionEdit    = "admin_edit"
	ActionCreate  = "create"
)

// Edges is the complete approval graph. Admin edits are not edges; they set
// fields directly.
var Edges = []Edge{
	{StatusSelfEvaluating, StageSelf, ActionSubmit, StatusEvaluatorEvaluating},
	{StatusEvaluatorEvaluating, StageEvaluator, ActionApprove, StatusReviewerReviewing},
	{StatusRejected, StageEvaluator, ActionApprove, StatusReviewerReviewing},
	{StatusReviewerReviewing, StageReviewer, ActionApprove, StatusManagerReviewing},
	{StatusReviewerReviewing, StageReviewer, ActionReject, StatusRejected},
	{StatusManagerReviewing, StageManager, ActionApprove, StatusCompleted},
	{StatusManagerReviewing, StageManager, ActionReject, StatusReviewerReviewing},
}

// StageActiveIn reports whether the stage may act while the evaluation is in status.
func StageActiveIn(stage Stage, status Status) bool {
	for _, e := range Edges {
		if e.Stage == stage && e.From == status {
			return true
		}
	}
	return false
}

// NextStatus looks up the target of a stage action from a status.
func NextStatus(from Status, stage Stage, action string) (Status, bool) {
	for _, e := range Edges {
		if e.From == from && e.Stage == stage && e.Action == action {
			return e.To, true
		}
	}
	return "", false
}
