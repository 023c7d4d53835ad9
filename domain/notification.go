package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifyReviewRequested  NotificationKind = "review-requested"
	NotifyResultReady      NotificationKind = "result-ready"
	NotifyRejectedReturned NotificationKind = "rejected-returned"
	NotifyNewCycleCreated  NotificationKind = "new-cycle-created"
)

// AdminChannel is the recipient id used for the admin broadcast channel.
const AdminChannel uint = 0

// Notification is a fire-and-forget message about an evaluation.
type Notification struct {
	ID             string           `json:"id"`
	Kind           NotificationKind `json:"kind"`
	RecipientID    uint             `json:"recipient_id"`
	RecipientName  string           `json:"recipient_name,omitempty"`
	RecipientEmail string           `json:"recipient_email,omitempty"`
	EvaluationID   uint             `json:"evaluation_id"`
	EvalueeName    string           `json:"evaluee_name,omitempty"`
	Year           int              `json:"year"`
	Period         Period           `json:"period"`
	Reason         string           `json:"reason,omitempty"`
	FinalScore     *float64         `json:"final_score,omitempty"`
	FinalGrade     Grade            `json:"final_grade,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewNotification stamps a notification about ev for one recipient.
func NewNotification(kind NotificationKind, recipientID uint, ev *Evaluation, now time.Time) Notification {
	return Notification{
		ID:           uuid.NewString(),
		Kind:         kind,
		RecipientID:  recipientID,
		EvaluationID: ev.ID,
		Year:         ev.Year,
		Period:       ev.Period,
		CreatedAt:    now,
	}
}

// IsAdminChannel reports whether the message targets the admin channel.
func (n Notification) IsAdminChannel() bool {
	return n.RecipientID == AdminChannel
}

// Notifier delivers notifications. Failures are reported, never retried here.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
