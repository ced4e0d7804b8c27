package monitoring

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML shape of a bootstrap rules file. Durations are
// Go duration strings ("30s", "5m").
type rulesFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Enabled     *bool             `yaml:"enabled"`
	Metric      string            `yaml:"metric"`
	Aggregation string            `yaml:"aggregation"`
	Operator    string            `yaml:"operator"`
	Threshold   float64           `yaml:"threshold"`
	TimeWindow  string            `yaml:"time_window"`
	Interval    string            `yaml:"interval"`
	Severity    string            `yaml:"severity"`
	Frequency   string            `yaml:"frequency"`
	Labels      map[string]string `yaml:"labels"`
	Channels    []channelRefSpec  `yaml:"channels"`
	Escalations []escalationSpec  `yaml:"escalations"`
}

type channelRefSpec struct {
	Channel   string `yaml:"channel"`
	Recipient string `yaml:"recipient"`
	RateLimit string `yaml:"rate_limit"`
}

type escalationSpec struct {
	Delay     string            `yaml:"delay"`
	Notify    []channelRefSpec  `yaml:"notify"`
	Remediate map[string]string `yaml:"remediate"`
}

// LoadRulesFile parses a bootstrap rules file into validated alert rules.
func LoadRulesFile(path string) ([]*AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	rules := make([]*AlertRule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		rule, err := spec.toRule()
		if err != nil {
			return nil, fmt.Errorf("rules file entry %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s ruleSpec) toRule() (*AlertRule, error) {
	window, err := parseDuration(s.TimeWindow, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("time_window: %w", err)
	}
	interval, err := parseDuration(s.Interval, 0)
	if err != nil {
		return nil, fmt.Errorf("interval: %w", err)
	}
	frequency, err := parseDuration(s.Frequency, 0)
	if err != nil {
		return nil, fmt.Errorf("frequency: %w", err)
	}

	agg := Aggregation(s.Aggregation)
	if agg == "" {
		agg = AggAvg
	}

	rule := &AlertRule{
		Name:               s.Name,
		Description:        s.Description,
		Enabled:            s.Enabled == nil || *s.Enabled,
		EvaluationInterval: interval,
		Severity:           AlertSeverity(s.Severity),
		Frequency:          frequency,
		Labels:             s.Labels,
		Condition: Condition{
			Metric:      s.Metric,
			Aggregation: agg,
			Operator:    ConditionOperator(s.Operator),
			Threshold:   s.Threshold,
			TimeWindow:  window,
		},
	}

	for _, ref := range s.Channels {
		parsed, err := toChannelRef(ref)
		if err != nil {
			return nil, err
		}
		rule.Channels = append(rule.Channels, parsed)
	}

	for _, esc := range s.Escalations {
		delay, err := parseDuration(esc.Delay, 0)
		if err != nil {
			return nil, fmt.Errorf("escalation delay: %w", err)
		}
		level := EscalationLevel{Delay: delay}
		if len(esc.Notify) > 0 {
			action := EscalationAction{Type: ActionNotify}
			for _, ref := range esc.Notify {
				parsed, err := toChannelRef(ref)
				if err != nil {
					return nil, err
				}
				action.Channels = append(action.Channels, parsed)
			}
			level.Actions = append(level.Actions, action)
		}
		if len(esc.Remediate) > 0 {
			level.Actions = append(level.Actions, EscalationAction{Type: ActionAutoRemediate, Params: esc.Remediate})
		}
		rule.Escalations = append(rule.Escalations, level)
	}

	return rule, nil
}

func toChannelRef(spec channelRefSpec) (ChannelRef, error) {
	limit, err := parseDuration(spec.RateLimit, 0)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("channel %s rate_limit: %w", spec.Channel, err)
	}
	return ChannelRef{ChannelID: spec.Channel, Recipient: spec.Recipient, RateLimit: limit}, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
