package interfaces

import (
	"strings"

	"hr-evaluator/domain"
)

// transitionRequest is the flat PATCH body. Exactly one field group may be set.
type transitionRequest struct {
	SelfSubmitted *bool   `json:"self_submitted"`
	SelfComment   *string `json:"self_comment"`

	EvaluatorApproved *bool   `json:"evaluator_approved"`
	EvaluatorComment  *string `json:"evaluator_comment"`

	ReviewerApproved       *bool   `json:"reviewer_approved"`
	ReviewerComment        *string `json:"reviewer_comment"`
	ReviewerRejectedReason *string `json:"reviewer_rejected_reason"`

	ManagerApproved       *bool   `json:"manager_approved"`
	ManagerComment        *string `json:"manager_comment"`
	ManagerRejectedReason *string `json:"manager_rejected_reason"`

	Year                *int    `json:"year"`
	Period              *string `json:"period"`
	EvalueeID           *uint   `json:"evaluee_id"`
	EvaluatorID         *uint   `json:"evaluator_id"`
	ReviewerID          *uint   `json:"reviewer_id"`
	ManagerID           *uint   `json:"manager_id"`
	Status              *string `json:"status"`
	AllowSelfEvaluation *bool   `json:"allow_self_evaluation"`
}

func (r transitionRequest) payload() (domain.StagePayload, error) {
	var candidates []domain.StagePayload
	if r.SelfSubmitted != nil || r.SelfComment != nil {
		candidates = append(candidates, domain.SelfSubmission{
			Submitted: r.SelfSubmitted != nil && *r.SelfSubmitted,
			Comment:   r.SelfComment,
		})
	}
	if r.EvaluatorApproved != nil || r.EvaluatorComment != nil {
		candidates = append(candidates, domain.EvaluatorDecision{
			Approved: r.EvaluatorApproved,
			Comment:  r.EvaluatorComment,
		})
	}
	if r.ReviewerApproved != nil || r.ReviewerComment != nil || r.ReviewerRejectedReason != nil {
		candidates = append(candidates, domain.ReviewerDecision{
			Approved:       r.ReviewerApproved,
			Comment:        r.ReviewerComment,
			RejectedReason: deref(r.ReviewerRejectedReason),
		})
	}
	if r.ManagerApproved != nil || r.ManagerComment != nil || r.ManagerRejectedReason != nil {
		candidates = append(candidates, domain.ManagerDecision{
			Approved:       r.ManagerApproved,
			Comment:        r.ManagerComment,
			RejectedReason: deref(r.ManagerRejectedReason),
		})
	}
	edit, err := r.adminEdit()
	if err != nil {
		return nil, err
	}
	if !edit.Empty() {
		candidates = append(candidates, edit)
	}

	switch len(candidates) {
	case 0:
		return nil, domain.Invalid("nothing to update")
	case 1:
		return candidates[0], nil
	}
	var v domain.Violations
	for _, c := range candidates {
		v.Add(string(c.Stage()), "conflicts with another stage in the same request")
	}
	return nil, v.Err("exactly one stage may act per request")
}

func (r transitionRequest) adminEdit() (domain.AdminEdit, error) {
	edit := domain.AdminEdit{
		Year:                r.Year,
		EvalueeID:           r.EvalueeID,
		EvaluatorID:         r.EvaluatorID,
		ReviewerID:          r.ReviewerID,
		ManagerID:           r.ManagerID,
		AllowSelfEvaluation: r.AllowSelfEvaluation,
	}
	var v domain.Violations
	if r.Period != nil {
		p := domain.Period(strings.ToUpper(strings.TrimSpace(*r.Period)))
		if !p.Valid() {
			v.Add("period", "unknown period %q", *r.Period)
		}
		edit.Period = &p
	}
	if r.Status != nil {
		st, err := domain.ParseStatus(strings.ToUpper(strings.TrimSpace(*r.Status)))
		if err != nil {
			v.Add("status", "%v", err)
		}
		edit.Status = &st
	}
	return edit, v.Err("invalid evaluation edit")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
