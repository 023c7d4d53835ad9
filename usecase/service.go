// Package usecase implements the evaluation approval workflow on top of a
// gorm store. Every mutating operation runs in one transaction; notifications
// are dispatched after commit and their failures are only logged.
package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"hr-evaluator/domain"
)

// Recorder receives workflow counters. The prometheus implementation lives in
// infrastructure.
type Recorder interface {
	TransitionApplied(from, to domain.Status)
	NotificationSent(kind domain.NotificationKind, err error)
	BatchResult(created, failed int)
}

type nopRecorder struct{}

func (nopRecorder) TransitionApplied(domain.Status, domain.Status)  {}
func (nopRecorder) NotificationSent(domain.NotificationKind, error) {}
func (nopRecorder) BatchResult(int, int)                            {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) error { return nil }

// EvaluationService is the workflow engine plus its query surface.
type EvaluationService struct {
	db         *gorm.DB
	routing    domain.RoutingTable
	notifier   domain.Notifier
	aggregator domain.Aggregator
	recorder   Recorder
	log        logrus.FieldLogger
	clock      func() time.Time
}

// Option customizes the service.
type Option func(*EvaluationService)

func WithNotifier(n domain.Notifier) Option {
	return func(s *EvaluationService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithAggregator(a domain.Aggregator) Option {
	return func(s *EvaluationService) {
		if a != nil {
			s.aggregator = a
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *EvaluationService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *EvaluationService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *EvaluationService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewEvaluationService(db *gorm.DB, routing domain.RoutingTable, opts ...Option) (*EvaluationService, error) {
	if db == nil {
		return nil, fmt.Errorf("evaluation service: db is required")
	}
	if routing == nil {
		return nil, fmt.Errorf("evaluation service: routing table is required")
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	s := &EvaluationService{
		db:         db,
		routing:    routing,
		notifier:   nopNotifier{},
		aggregator: domain.MeanAggregator{},
		recorder:   nopRecorder{},
		log:        silent,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *EvaluationService) now() time.Time {
	return s.clock().UTC()
}

// dispatch delivers notifications after the owning transaction committed.
// Recipient details are filled from the person directory.
func (s *EvaluationService) dispatch(ctx context.Context, notes []domain.Notification) {
	for _, n := range notes {
		if err := s.enrich(ctx, &n); err != nil {
			s.log.WithFields(logrus.Fields{
				"kind":          n.Kind,
				"recipient_id":  n.RecipientID,
				"evaluation_id": n.EvaluationID,
			}).WithError(err).Warn("notification recipient lookup failed")
		}
		err := s.notifier.Notify(ctx, n)
		s.recorder.NotificationSent(n.Kind, err)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"kind":          n.Kind,
				"recipient_id":  n.RecipientID,
				"evaluation_id": n.EvaluationID,
			}).WithError(err).Warn("notification delivery failed")
			continue
		}
		s.log.WithFields(logrus.Fields{
			"kind":          n.Kind,
			"recipient_id":  n.RecipientID,
			"evaluation_id": n.EvaluationID,
		}).Debug("notification dispatched")
	}
}

func (s *EvaluationService) enrich(ctx context.Context, n *domain.Notification) error {
	db := s.db.WithContext(ctx)
	var ev domain.Evaluation
	if err := db.Select("evaluee_id").First(&ev, n.EvaluationID).Error; err == nil {
		var evaluee domain.Person
		if err := db.First(&evaluee, ev.EvalueeID).Error; err == nil {
			n.EvalueeName = evaluee.Name
		}
	}
	if n.IsAdminChannel() {
		return nil
	}
	var p domain.Person
	if err := db.First(&p, n.RecipientID).Error; err != nil {
		return fmt.Errorf("load person %d: %w", n.RecipientID, err)
	}
	n.RecipientName = p.Name
	n.RecipientEmail = p.Email
	return nil
}
