package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountReport(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CountReport(&DispatchReport{
		Outcomes: []ChannelOutcome{
			{ChannelID: "a", Status: DispatchSent},
			{ChannelID: "b", Status: DispatchSent},
			{ChannelID: "c", Status: DispatchRateLimited},
			{ChannelID: "d", Status: DispatchFailed},
		},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("failed")))
}

func TestCountReportNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.CountReport(&DispatchReport{}) })

	m = NewMetrics(prometheus.NewRegistry())
	assert.NotPanics(t, func() { m.CountReport(nil) })
}

func TestRuleValidate(t *testing.T) {
	valid := func() *AlertRule {
		return &AlertRule{
			Name:               "ok",
			Severity:           SeverityLow,
			EvaluationInterval: time.Minute,
			Condition:          Condition{Metric: "m", Operator: OpGreaterThan, Threshold: 1},
		}
	}

	assert.NoError(t, valid().Validate())

	r := valid()
	r.Name = ""
	assert.Error(t, r.Validate())

	r = valid()
	r.Condition.Metric = ""
	assert.Error(t, r.Validate())

	r = valid()
	r.Condition.Operator = "between"
	assert.Error(t, r.Validate())

	r = valid()
	r.EvaluationInterval = 0
	assert.Error(t, r.Validate())

	r = valid()
	r.Severity = "urgent"
	assert.Error(t, r.Validate())

	r = valid()
	r.Escalations = []EscalationLevel{{Delay: 0}}
	assert.Error(t, r.Validate())
}

func TestPlanValidate(t *testing.T) {
	valid := func() *CapacityPlan {
		return &CapacityPlan{
			Resource: "storage", Metric: "system.disk.usage",
			Factors: []CapacityFactor{{Name: "growth", Impact: 0.1, Confidence: 0.5}},
		}
	}

	assert.NoError(t, valid().Validate())

	p := valid()
	p.Resource = ""
	assert.Error(t, p.Validate())

	p = valid()
	p.Metric = ""
	assert.Error(t, p.Validate())

	p = valid()
	p.Factors[0].Confidence = 1.5
	assert.Error(t, p.Validate())
}

func TestFanoutSink(t *testing.T) {
	a := &collectSink{}
	b := &collectSink{}
	sink := FanoutSink{a, b}

	sink.Publish(Event{Type: EventAlertTriggered, EntityID: "x"})

	assert.Len(t, a.byType(EventAlertTriggered), 1)
	assert.Len(t, b.byType(EventAlertTriggered), 1)
}
