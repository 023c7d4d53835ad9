package infrastructure

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"hr-evaluator/domain"
)

// WorkflowMetrics counts workflow activity.
type WorkflowMetrics struct {
	Transitions   *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	BatchCreated  *prometheus.CounterVec
}

func NewWorkflowMetrics(registry prometheus.Registerer) (*WorkflowMetrics, error) {
	m := &WorkflowMetrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_transitions_total",
				Help: "Total number of evaluation status changes partitioned by source and target status.",
			},
			[]string{"from", "to"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_notifications_total",
				Help: "Total number of dispatched notifications partitioned by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		BatchCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_batch_created_total",
				Help: "Total number of evaluees processed by batch creation partitioned by result.",
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.Transitions, m.Notifications, m.BatchCreated} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register workflow metrics: %w", err)
		}
	}
	return m, nil
}

func (m *WorkflowMetrics) TransitionApplied(from, to domain.Status) {
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *WorkflowMetrics) NotificationSent(kind domain.NotificationKind, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.Notifications.WithLabelValues(string(kind), status).Inc()
}

func (m *WorkflowMetrics) BatchResult(created, failed int) {
	m.BatchCreated.WithLabelValues("created").Add(float64(created))
	m.BatchCreated.WithLabelValues("failed").Add(float64(failed))
}
