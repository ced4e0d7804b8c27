package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventKind distinguishes why a notification is being sent.
type EventKind string

const (
	KindTrigger    EventKind = "trigger"
	KindEscalation EventKind = "escalation"
	KindResolution EventKind = "resolution"
)

// DispatchStatus is the per-channel outcome of a dispatch.
type DispatchStatus string

const (
	DispatchSent        DispatchStatus = "sent"
	DispatchFailed      DispatchStatus = "failed"
	DispatchRateLimited DispatchStatus = "rate_limited"
	DispatchDisabled    DispatchStatus = "disabled"
	DispatchUnknown     DispatchStatus = "unknown_channel"
)

// ChannelOutcome records what happened on one channel.
type ChannelOutcome struct {
	ChannelID string         `json:"channel_id"`
	Status    DispatchStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	Elapsed   time.Duration  `json:"elapsed"`
}

// DispatchReport aggregates per-channel outcomes for one dispatch.
type DispatchReport struct {
	AlertID  string           `json:"alert_id"`
	RuleID   string           `json:"rule_id"`
	Kind     EventKind        `json:"kind"`
	At       time.Time        `json:"at"`
	Outcomes []ChannelOutcome `json:"outcomes"`
}

// SentCount returns how many channels accepted the notification.
func (r *DispatchReport) SentCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == DispatchSent {
			n++
		}
	}
	return n
}

type windowKey struct {
	ruleID    string
	channelID string
	kind      EventKind
}

// Dispatcher fans an alert notification out to the rule's channels,
// enforcing a fixed rate-limit window per (rule, channel, event kind).
// Channel sends run in parallel; one channel's failure never blocks the
// others.
type Dispatcher struct {
	clock            Clock
	logger           *logrus.Logger
	channels         map[string]Channel
	sendTimeout      time.Duration
	defaultRateLimit time.Duration

	mu      sync.Mutex
	windows map[windowKey]time.Time
}

// NewDispatcher creates a dispatcher over the configured channel set.
func NewDispatcher(channels []Channel, clock Clock, sendTimeout, defaultRateLimit time.Duration, logger *logrus.Logger) *Dispatcher {
	byID := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ID()] = ch
	}
	return &Dispatcher{
		clock:            clock,
		logger:           logger,
		channels:         byID,
		sendTimeout:      sendTimeout,
		defaultRateLimit: defaultRateLimit,
		windows:          make(map[windowKey]time.Time),
	}
}

// Dispatch sends one notification per channel ref. An attempted send opens
// the rate window whether or not it succeeds; further attempts within the
// window are recorded as rate-limited and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert, rule *AlertRule, kind EventKind, refs []ChannelRef) *DispatchReport {
	now := d.clock.Now()
	report := &DispatchReport{
		AlertID:  alert.ID,
		RuleID:   rule.ID,
		Kind:     kind,
		At:       now,
		Outcomes: make([]ChannelOutcome, len(refs)),
	}

	var wg sync.WaitGroup
	for i, ref := range refs {
		ch, ok := d.channels[ref.ChannelID]
		if !ok {
			report.Outcomes[i] = ChannelOutcome{ChannelID: ref.ChannelID, Status: DispatchUnknown}
			d.logger.Warnf("Dispatch for rule %s references unknown channel %s", rule.ID, ref.ChannelID)
			continue
		}
		if !ch.Enabled() {
			report.Outcomes[i] = ChannelOutcome{ChannelID: ref.ChannelID, Status: DispatchDisabled}
			continue
		}
		if !d.openWindow(rule.ID, ref, kind, now) {
			report.Outcomes[i] = ChannelOutcome{ChannelID: ref.ChannelID, Status: DispatchRateLimited}
			continue
		}

		wg.Add(1)
		go func(i int, ref ChannelRef, ch Channel) {
			defer wg.Done()
			report.Outcomes[i] = d.send(ctx, ch, ref, alert, rule, kind)
		}(i, ref, ch)
	}
	wg.Wait()

	return report
}

// openWindow reports whether a send may proceed and, if so, starts the
// fixed window for the key.
func (d *Dispatcher) openWindow(ruleID string, ref ChannelRef, kind EventKind, now time.Time) bool {
	limit := ref.RateLimit
	if limit <= 0 {
		limit = d.defaultRateLimit
	}
	if limit <= 0 {
		return true
	}

	key := windowKey{ruleID: ruleID, channelID: ref.ChannelID, kind: kind}
	d.mu.Lock()
	defer d.mu.Unlock()
	if start, ok := d.windows[key]; ok && now.Sub(start) < limit {
		return false
	}
	d.windows[key] = now
	return true
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, ref ChannelRef, alert *Alert, rule *AlertRule, kind EventKind) ChannelOutcome {
	subject, body := renderMessage(alert, rule, kind)

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	started := d.clock.Now()
	err := ch.Send(sendCtx, ref.Recipient, subject, body)
	elapsed := d.clock.Now().Sub(started)

	if err != nil {
		d.logger.WithError(err).Warnf("Notification send failed: channel=%s rule=%s kind=%s", ch.ID(), rule.ID, kind)
		return ChannelOutcome{ChannelID: ch.ID(), Status: DispatchFailed, Error: err.Error(), Elapsed: elapsed}
	}
	return ChannelOutcome{ChannelID: ch.ID(), Status: DispatchSent, Elapsed: elapsed}
}

func renderMessage(alert *Alert, rule *AlertRule, kind EventKind) (subject, body string) {
	switch kind {
	case KindResolution:
		subject = fmt.Sprintf("[RESOLVED] %s", rule.Name)
		body = fmt.Sprintf("Alert %s for rule %q resolved at %s.",
			alert.ID, rule.Name, alert.LastSeenAt.Format(time.RFC3339))
	case KindEscalation:
		subject = fmt.Sprintf("[%s] %s (escalation level %d)", alert.Severity, rule.Name, alert.EscalationLevel)
		body = fmt.Sprintf("Alert %s for rule %q escalated to level %d. Last observed value: %.2f (threshold %s %.2f).",
			alert.ID, rule.Name, alert.EscalationLevel, alert.Value, rule.Condition.Operator, rule.Condition.Threshold)
	default:
		subject = fmt.Sprintf("[%s] %s", alert.Severity, rule.Name)
		body = fmt.Sprintf("Alert %s triggered for rule %q: %s %s %s %.2f, observed %.2f.",
			alert.ID, rule.Name, rule.Condition.Metric, rule.Condition.Aggregation,
			rule.Condition.Operator, rule.Condition.Threshold, alert.Value)
	}
	return subject, body
}
