package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes engine counters for the /metrics endpoint.
type Metrics struct {
	Evaluations        *prometheus.CounterVec
	EvaluationFailures *prometheus.CounterVec
	Triggers           prometheus.Counter
	Escalations        prometheus.Counter
	Dispatches         *prometheus.CounterVec
	ActiveAlerts       prometheus.Gauge
	CapacityRecomputes prometheus.Counter
	RegressionsFound   prometheus.Counter
}

// NewMetrics registers engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monitoring_rule_evaluations_total",
			Help: "Rule condition evaluations, by rule.",
		}, []string{"rule_id"}),
		EvaluationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monitoring_rule_evaluation_failures_total",
			Help: "Metric source failures during rule evaluation, by rule.",
		}, []string{"rule_id"}),
		Triggers: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitoring_alerts_triggered_total",
			Help: "Alerts created by the lifecycle manager.",
		}),
		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitoring_alerts_escalated_total",
			Help: "Escalation levels fired.",
		}),
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monitoring_notification_dispatches_total",
			Help: "Notification dispatch outcomes, by status.",
		}, []string{"status"}),
		ActiveAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monitoring_active_alerts",
			Help: "Alerts currently in active or acknowledged state.",
		}),
		CapacityRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitoring_capacity_recomputes_total",
			Help: "Capacity plan recompute runs.",
		}),
		RegressionsFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitoring_performance_regressions_total",
			Help: "Regression verdicts with at least one violated metric.",
		}),
	}
}

// CountReport records a dispatch report's outcomes.
func (m *Metrics) CountReport(report *DispatchReport) {
	if m == nil || report == nil {
		return
	}
	for _, o := range report.Outcomes {
		m.Dispatches.WithLabelValues(string(o.Status)).Inc()
	}
}
