package monitoring

import (
	"context"
	"fmt"
	"math"
	"time"
)

// AlertSeverity classifies how urgent a triggered alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// ConditionOperator compares a sampled metric value against a threshold.
type ConditionOperator string

const (
	OpGreaterThan    ConditionOperator = "gt"
	OpLessThan       ConditionOperator = "lt"
	OpEqual          ConditionOperator = "eq"
	OpGreaterOrEqual ConditionOperator = "gte"
	OpLessOrEqual    ConditionOperator = "lte"
	OpNotEqual       ConditionOperator = "ne"
)

// Aggregation selects how the metric source reduces a time window to one value.
type Aggregation string

const (
	AggAvg   Aggregation = "avg"
	AggSum   Aggregation = "sum"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
	AggCount Aggregation = "count"
	AggP95   Aggregation = "p95"
	AggLast  Aggregation = "last"
)

// AlertStatus is the lifecycle state of an Alert instance.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// Condition is the typed form of a rule's trigger expression: a metric
// reference plus a comparison. No free-text matching.
type Condition struct {
	Metric      string            `json:"metric"`
	Aggregation Aggregation       `json:"aggregation"`
	Operator    ConditionOperator `json:"operator"`
	Threshold   float64           `json:"threshold"`
	TimeWindow  time.Duration     `json:"time_window"`
	Filters     map[string]string `json:"filters,omitempty"`
}

// ChannelRef binds a rule to a configured notification channel.
type ChannelRef struct {
	ChannelID string        `json:"channel_id"`
	Recipient string        `json:"recipient"`
	RateLimit time.Duration `json:"rate_limit,omitempty"`
}

// MatchKind selects how a suppression matcher compares label values.
type MatchKind string

const (
	MatchEqual    MatchKind = "equal"
	MatchNotEqual MatchKind = "not_equal"
)

// LabelMatcher narrows a suppression window to rules with matching labels.
type LabelMatcher struct {
	Name  string    `json:"name"`
	Value string    `json:"value"`
	Kind  MatchKind `json:"kind"`
}

// SuppressionWindow silences triggering, escalation and notification while
// it is in effect. Evaluation still runs underneath it.
type SuppressionWindow struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	StartsAt time.Time      `json:"starts_at"`
	EndsAt   time.Time      `json:"ends_at"`
	Matchers []LabelMatcher `json:"matchers,omitempty"`
}

// EscalationActionType names what an escalation level does when it fires.
type EscalationActionType string

const (
	ActionNotify        EscalationActionType = "notify"
	ActionAutoRemediate EscalationActionType = "auto_remediate"
)

// EscalationAction is one action executed when an escalation level fires.
type EscalationAction struct {
	Type     EscalationActionType `json:"type"`
	Channels []ChannelRef         `json:"channels,omitempty"`
	Params   map[string]string    `json:"params,omitempty"`
}

// EscalationLevel fires after the alert has stayed active for Delay past
// the previous level (or past the trigger, for the first level).
type EscalationLevel struct {
	Delay   time.Duration      `json:"delay"`
	Actions []EscalationAction `json:"actions"`
}

// AlertRule defines a threshold condition, its evaluation cadence and the
// response policy for alerts it raises.
type AlertRule struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Enabled     bool   `json:"enabled" db:"enabled"`

	Condition          Condition     `json:"condition"`
	EvaluationInterval time.Duration `json:"evaluation_interval"`

	Severity AlertSeverity `json:"severity"`
	// Frequency is the minimum interval between repeat notifications while
	// the alert stays active. Zero means notify on trigger only.
	Frequency    time.Duration       `json:"frequency"`
	Labels       map[string]string   `json:"labels,omitempty"`
	Channels     []ChannelRef        `json:"channels"`
	Suppressions []SuppressionWindow `json:"suppressions,omitempty"`
	Escalations  []EscalationLevel   `json:"escalations,omitempty"`

	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty" db:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

var validOperators = map[ConditionOperator]bool{
	OpGreaterThan: true, OpLessThan: true, OpEqual: true,
	OpGreaterOrEqual: true, OpLessOrEqual: true, OpNotEqual: true,
}

var validSeverities = map[AlertSeverity]bool{
	SeverityLow: true, SeverityMedium: true, SeverityHigh: true, SeverityCritical: true,
}

// Validate rejects malformed rules at registration time so configuration
// errors never reach the evaluation loop.
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Condition.Metric == "" {
		return fmt.Errorf("rule %q: condition metric is required", r.Name)
	}
	if !validOperators[r.Condition.Operator] {
		return fmt.Errorf("rule %q: unknown operator %q", r.Name, r.Condition.Operator)
	}
	if math.IsNaN(r.Condition.Threshold) || math.IsInf(r.Condition.Threshold, 0) {
		return fmt.Errorf("rule %q: threshold must be a finite number", r.Name)
	}
	if r.EvaluationInterval <= 0 {
		return fmt.Errorf("rule %q: evaluation interval must be positive", r.Name)
	}
	if !validSeverities[r.Severity] {
		return fmt.Errorf("rule %q: unknown severity %q", r.Name, r.Severity)
	}
	for i, lvl := range r.Escalations {
		if lvl.Delay <= 0 {
			return fmt.Errorf("rule %q: escalation level %d delay must be positive", r.Name, i)
		}
	}
	return nil
}

// Alert is a live instance of a rule's condition being true. At most one
// non-resolved Alert exists per rule.
type Alert struct {
	ID               string        `json:"id" db:"id"`
	RuleID           string        `json:"rule_id" db:"rule_id"`
	RuleName         string        `json:"rule_name" db:"rule_name"`
	Severity         AlertSeverity `json:"severity" db:"severity"`
	Status           AlertStatus   `json:"status" db:"status"`
	Value            float64       `json:"value" db:"value"`
	EscalationLevel  int           `json:"escalation_level" db:"escalation_level"`
	FirstTriggeredAt time.Time     `json:"first_triggered_at" db:"first_triggered_at"`
	LastSeenAt       time.Time     `json:"last_seen_at" db:"last_seen_at"`
	AcknowledgedAt   *time.Time    `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	History          []AlertEvent  `json:"history,omitempty"`
}

// AlertEvent records one lifecycle transition in an alert's history.
type AlertEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	Description string    `json:"description"`
	Value       float64   `json:"value,omitempty"`
	User        string    `json:"user,omitempty"`
}

// CapacityFactor is one weighted growth driver in a capacity plan.
type CapacityFactor struct {
	Name       string  `json:"name"`
	Impact     float64 `json:"impact"`
	Trend      string  `json:"trend"`
	Confidence float64 `json:"confidence"`
}

// CapacityPlan projects future utilization of one resource from current
// usage and weighted growth factors.
type CapacityPlan struct {
	ID              string           `json:"id" db:"id"`
	Resource        string           `json:"resource" db:"resource"`
	Metric          string           `json:"metric" db:"metric"`
	Aggregation     Aggregation      `json:"aggregation" db:"aggregation"`
	CurrentUsage    float64          `json:"current_usage" db:"current_usage"`
	ProjectedUsage  float64          `json:"projected_usage" db:"projected_usage"`
	TimeHorizon     time.Duration    `json:"time_horizon"`
	Confidence      float64          `json:"confidence" db:"confidence"`
	Factors         []CapacityFactor `json:"factors"`
	Recommendations []string         `json:"recommendations,omitempty"`
	Risks           []string         `json:"risks,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// Validate rejects malformed plans at registration time.
func (p *CapacityPlan) Validate() error {
	if p.Resource == "" {
		return fmt.Errorf("plan resource is required")
	}
	if p.Metric == "" {
		return fmt.Errorf("plan %q: metric is required", p.Resource)
	}
	for i, f := range p.Factors {
		if f.Confidence < 0 || f.Confidence > 1 {
			return fmt.Errorf("plan %q: factor %d confidence must be within [0,1]", p.Resource, i)
		}
	}
	return nil
}

// TestBaseline is the reference measurement a performance test is judged
// against. Regression verdicts never mutate it.
type TestBaseline struct {
	ResponseTime float64   `json:"response_time" db:"response_time"`
	Throughput   float64   `json:"throughput" db:"throughput"`
	ErrorRate    float64   `json:"error_rate" db:"error_rate"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}

// PerformanceTest owns zero-or-one baseline and an ordered result sequence.
type PerformanceTest struct {
	ID        string        `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Baseline  *TestBaseline `json:"baseline,omitempty"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// TestResult is one completed run of a performance test. Immutable once
// recorded; the regression verdict attaches to the result.
type TestResult struct {
	ID              string             `json:"id" db:"id"`
	TestID          string             `json:"test_id" db:"test_id"`
	AvgResponseTime float64            `json:"avg_response_time" db:"avg_response_time"`
	Throughput      float64            `json:"throughput" db:"throughput"`
	ErrorRate       float64            `json:"error_rate" db:"error_rate"`
	RecordedAt      time.Time          `json:"recorded_at" db:"recorded_at"`
	Verdict         *RegressionVerdict `json:"verdict,omitempty"`
}

// MetricViolation describes one regressed metric in a verdict.
type MetricViolation struct {
	Metric   string  `json:"metric"`
	Baseline float64 `json:"baseline"`
	Observed float64 `json:"observed"`
	Delta    float64 `json:"delta"`
}

// RegressionVerdict is the outcome of comparing a result to its baseline.
// BaselineMissing is reported explicitly instead of silently passing.
type RegressionVerdict struct {
	Regression      bool              `json:"regression"`
	BaselineMissing bool              `json:"baseline_missing"`
	Violations      []MetricViolation `json:"violations,omitempty"`
}

// MetricSource answers point-in-time metric queries. Implementations may
// fail transiently; callers treat a failed query as "condition unknown".
type MetricSource interface {
	Query(ctx context.Context, metric string, agg Aggregation, window time.Duration, filters map[string]string) (float64, error)
}

// Channel is one notification transport (email, SMS, Slack, webhook, pager).
type Channel interface {
	ID() string
	Type() string
	Enabled() bool
	Send(ctx context.Context, recipient, subject, body string) error
}
