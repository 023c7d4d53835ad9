package infrastructure

import (
	"context"

	"github.com/sirupsen/logrus"

	"hr-evaluator/domain"
)

// LogNotifier only logs notifications. It is used when no delivery channel is
// configured.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (l LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	title, body := FormatNotification(n)
	l.Log.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"kind":            n.Kind,
		"recipient_id":    n.RecipientID,
		"evaluation_id":   n.EvaluationID,
		"title":           title,
	}).Info(body)
	return nil
}
