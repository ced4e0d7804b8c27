package monitoring

import "time"

// EventType names an event emitted by the engine for dashboards and
// automation consumers.
type EventType string

const (
	EventAlertTriggered       EventType = "alert.triggered"
	EventAlertEscalated       EventType = "alert.escalated"
	EventAlertAcknowledged    EventType = "alert.acknowledged"
	EventAlertResolved        EventType = "alert.resolved"
	EventCapacityExceeded     EventType = "capacity.threshold_exceeded"
	EventRegressionDetected   EventType = "performance.regression_detected"
	EventRuleEvaluationFailed EventType = "rule.evaluation_failed"
)

// Event carries the entity id and timestamp of an engine decision.
type Event struct {
	Type      EventType              `json:"type"`
	EntityID  string                 `json:"entity_id"`
	RuleID    string                 `json:"rule_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventSink receives engine events. Publish must not block the caller for
// long; slow consumers buffer or drop on their side.
type EventSink interface {
	Publish(event Event)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// FanoutSink forwards each event to every registered sink.
type FanoutSink []EventSink

func (f FanoutSink) Publish(event Event) {
	for _, s := range f {
		s.Publish(event)
	}
}
