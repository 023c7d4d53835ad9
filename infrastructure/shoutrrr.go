package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"hr-evaluator/domain"
)

// ChatDelivery sends notifications through shoutrrr. Participant messages and
// admin channel messages use separate URL sets; a channel without URLs is
// silently skipped.
type ChatDelivery struct {
	people *router.ServiceRouter
	admin  *router.ServiceRouter
}

func NewChatDelivery(urls, adminURLs []string, timeout time.Duration) (*ChatDelivery, error) {
	people, err := newSender(urls, timeout)
	if err != nil {
		return nil, fmt.Errorf("notify urls: %w", err)
	}
	admin, err := newSender(adminURLs, timeout)
	if err != nil {
		return nil, fmt.Errorf("admin notify urls: %w", err)
	}
	return &ChatDelivery{people: people, admin: admin}, nil
}

func newSender(urls []string, timeout time.Duration) (*router.ServiceRouter, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return sender, nil
}

// Notify implements domain.Notifier for direct (unqueued) delivery.
func (c *ChatDelivery) Notify(_ context.Context, n domain.Notification) error {
	return c.Deliver(n)
}

func (c *ChatDelivery) Deliver(n domain.Notification) error {
	sender := c.people
	if n.IsAdminChannel() {
		sender = c.admin
	}
	if sender == nil {
		return nil
	}
	title, body := FormatNotification(n)
	params := stypes.Params{}
	params.SetTitle(title)
	for _, err := range sender.Send(body, &params) {
		if err != nil {
			return fmt.Errorf("send %s notification %s: %w", n.Kind, n.ID, err)
		}
	}
	return nil
}

// FormatNotification renders the title and body of a message.
func FormatNotification(n domain.Notification) (string, string) {
	subject := fmt.Sprintf("evaluation #%d (%d %s)", n.EvaluationID, n.Year, n.Period)
	if n.EvalueeName != "" {
		subject = fmt.Sprintf("%s's evaluation #%d (%d %s)", n.EvalueeName, n.EvaluationID, n.Year, n.Period)
	}
	greeting := ""
	if n.RecipientName != "" {
		greeting = fmt.Sprintf("Hi %s, ", n.RecipientName)
	}

	var title, body string
	switch n.Kind {
	case domain.NotifyReviewRequested:
		title = "Evaluation awaiting your review"
		body = fmt.Sprintf("%s%s is waiting for your review.", greeting, subject)
	case domain.NotifyRejectedReturned:
		title = "Evaluation returned"
		body = fmt.Sprintf("%s%s was returned to you. Reason: %s", greeting, subject, n.Reason)
	case domain.NotifyResultReady:
		title = "Evaluation result ready"
		body = fmt.Sprintf("%s%s is complete.", greeting, subject)
		if n.FinalScore != nil {
			body += fmt.Sprintf(" Final score %.2f, grade %s.", *n.FinalScore, n.FinalGrade)
		}
	case domain.NotifyNewCycleCreated:
		title = "New evaluation cycle"
		body = fmt.Sprintf("%s%s has been opened.", greeting, subject)
	default:
		title = "Evaluation update"
		body = fmt.Sprintf("%s%s was updated.", greeting, subject)
	}
	return title, strings.TrimSpace(body)
}
