package domain

import "strings"

// StagePayload is the tagged variant a transition call carries. Exactly one
// variant is sent per call.
type StagePayload interface {
	Stage() Stage
}

// SelfSubmission is sent by the evaluee while self-evaluating.
type SelfSubmission struct {
	Submitted bool
	Comment   *string
}

// EvaluatorDecision with Approved nil saves the comment only.
type EvaluatorDecision struct {
	Approved *bool
	Comment  *string
}

type ReviewerDecision struct {
	Approved       *bool
	Comment        *string
	RejectedReason string
}

type ManagerDecision struct {
	Approved       *bool
	Comment        *string
	RejectedReason string
}

// AdminEdit sets fields directly. Nil fields are left untouched.
type AdminEdit struct {
	Year                *int
	Period              *Period
	EvalueeID           *uint
	EvaluatorID         *uint
	ReviewerID          *uint
	ManagerID           *uint
	Status              *Status
	AllowSelfEvaluation *bool
}

func (SelfSubmission) Stage() Stage    { return StageSelf }
func (EvaluatorDecision) Stage() Stage { return StageEvaluator }
func (ReviewerDecision) Stage() Stage  { return StageReviewer }
func (ManagerDecision) Stage() Stage   { return StageManager }
func (AdminEdit) Stage() Stage         { return StageAdmin }

// Empty reports whether the edit changes nothing.
func (a AdminEdit) Empty() bool {
	return a.Year == nil && a.Period == nil && a.EvalueeID == nil && a.EvaluatorID == nil &&
		a.ReviewerID == nil && a.ManagerID == nil && a.Status == nil && a.AllowSelfEvaluation == nil
}

// Decision is the normalized form of an approver payload.
type Decision struct {
	Approved *bool
	Comment  *string
	Reason   string
}

// DecisionOf extracts the approval fields of the approver variants.
func DecisionOf(p StagePayload) (Decision, bool) {
	switch v := p.(type) {
	case EvaluatorDecision:
		return Decision{Approved: v.Approved, Comment: v.Comment}, true
	case ReviewerDecision:
		return Decision{Approved: v.Approved, Comment: v.Comment, Reason: strings.TrimSpace(v.RejectedReason)}, true
	case ManagerDecision:
		return Decision{Approved: v.Approved, Comment: v.Comment, Reason: strings.TrimSpace(v.RejectedReason)}, true
	}
	return Decision{}, false
}

// Action maps the decision to an edge action.
func (d Decision) Action() string {
	switch {
	case d.Approved == nil:
		return ActionComment
	case *d.Approved:
		return ActionApprove
	default:
		return ActionReject
	}
}
