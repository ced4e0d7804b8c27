package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LifecycleManager owns the per-rule alert state machine:
//
//	Idle -> Active -> {Acknowledged -> Resolved, Resolved}
//
// At most one non-resolved alert exists per rule. All transitions for a
// rule are serialized through that rule's mutex, so an evaluation tick, an
// escalation timer fire and an acknowledge can never race each other.
type LifecycleManager struct {
	clock      Clock
	logger     *logrus.Logger
	dispatcher *Dispatcher
	alerts     AlertStore
	rules      RuleStore
	events     EventSink

	metrics *Metrics

	mu     sync.Mutex
	states map[string]*ruleState
}

// SetMetrics attaches optional engine counters.
func (m *LifecycleManager) SetMetrics(metrics *Metrics) { m.metrics = metrics }

type ruleState struct {
	mu           sync.Mutex
	alert        *Alert
	lastNotified time.Time
	timers       []TimerHandle
}

// dispatchRequest is a notification decided under the rule lock but sent
// only after it is released. Channel sends block for up to the send
// timeout; holding the rule lock across that wait would stall acks,
// resolves and the rule's escalation timers behind a slow transport.
type dispatchRequest struct {
	alert *Alert
	rule  *AlertRule
	kind  EventKind
	refs  []ChannelRef
}

// pendingDispatch snapshots the alert so the sender reads stable fields
// once the lock is gone.
func pendingDispatch(alert *Alert, rule *AlertRule, kind EventKind, refs []ChannelRef) dispatchRequest {
	cp := *alert
	return dispatchRequest{alert: &cp, rule: rule, kind: kind, refs: refs}
}

// sendPending performs the decided dispatches. Callers must not hold any
// rule lock.
func (m *LifecycleManager) sendPending(ctx context.Context, pending []dispatchRequest) {
	for _, req := range pending {
		report := m.dispatcher.Dispatch(ctx, req.alert, req.rule, req.kind, req.refs)
		if m.metrics != nil {
			m.metrics.CountReport(report)
		}
	}
}

// NewLifecycleManager wires the state machine to its collaborators.
func NewLifecycleManager(clock Clock, dispatcher *Dispatcher, alerts AlertStore, rules RuleStore, events EventSink, logger *logrus.Logger) *LifecycleManager {
	if events == nil {
		events = NopSink{}
	}
	return &LifecycleManager{
		clock:      clock,
		logger:     logger,
		dispatcher: dispatcher,
		alerts:     alerts,
		rules:      rules,
		events:     events,
		states:     make(map[string]*ruleState),
	}
}

func (m *LifecycleManager) state(ruleID string) *ruleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[ruleID]
	if !ok {
		st = &ruleState{}
		m.states[ruleID] = st
	}
	return st
}

// HandleTick processes one evaluation outcome for a rule. Suppression is
// checked before any trigger decision: while a window holds, evaluation
// results are observed but no transition or notification happens.
func (m *LifecycleManager) HandleTick(ctx context.Context, rule *AlertRule, conditionMet bool, value float64) {
	st := m.state(rule.ID)
	st.mu.Lock()

	now := m.clock.Now()
	if w := activeSuppression(rule, now); w != nil {
		m.logger.Debugf("Rule %s suppressed by window %s, skipping transition", rule.ID, w.ID)
		st.mu.Unlock()
		return
	}

	var pending []dispatchRequest
	switch {
	case conditionMet && (st.alert == nil || st.alert.Status == StatusResolved):
		pending = m.triggerLocked(ctx, st, rule, value, now)
	case conditionMet:
		pending = m.refreshLocked(ctx, st, rule, value, now)
	case st.alert != nil && st.alert.Status != StatusResolved:
		pending = m.resolveLocked(ctx, st, rule, "condition no longer met", "", now)
	}
	st.mu.Unlock()

	m.sendPending(ctx, pending)
}

// triggerLocked creates a new alert, arms the escalation chain and returns
// the trigger notification for the caller to send after unlocking.
func (m *LifecycleManager) triggerLocked(ctx context.Context, st *ruleState, rule *AlertRule, value float64, now time.Time) []dispatchRequest {
	alert := &Alert{
		ID:               uuid.New().String(),
		RuleID:           rule.ID,
		RuleName:         rule.Name,
		Severity:         rule.Severity,
		Status:           StatusActive,
		Value:            value,
		FirstTriggeredAt: now,
		LastSeenAt:       now,
		History: []AlertEvent{{
			Timestamp:   now,
			Type:        EventAlertTriggered,
			Description: "condition met",
			Value:       value,
		}},
	}
	st.alert = alert
	st.lastNotified = now

	m.persist(ctx, alert)
	if err := m.rules.TouchLastTriggered(ctx, rule.ID, now); err != nil {
		m.logger.WithError(err).Warnf("Failed to record last trigger for rule %s", rule.ID)
	}

	m.logger.Warnf("Alert triggered: rule=%s severity=%s value=%.2f", rule.Name, rule.Severity, value)
	m.events.Publish(Event{
		Type: EventAlertTriggered, EntityID: alert.ID, RuleID: rule.ID, Timestamp: now,
		Payload: map[string]interface{}{"severity": string(rule.Severity), "value": value},
	})
	if m.metrics != nil {
		m.metrics.Triggers.Inc()
		m.metrics.ActiveAlerts.Inc()
	}

	m.armEscalationLocked(st, rule, 0)
	return []dispatchRequest{pendingDispatch(alert, rule, KindTrigger, rule.Channels)}
}

// refreshLocked updates an already-active alert. Re-notification happens
// only once the rule's frequency has elapsed, to avoid notification storms.
func (m *LifecycleManager) refreshLocked(ctx context.Context, st *ruleState, rule *AlertRule, value float64, now time.Time) []dispatchRequest {
	alert := st.alert
	alert.Value = value
	alert.LastSeenAt = now
	m.persist(ctx, alert)

	if alert.Status != StatusActive || rule.Frequency <= 0 {
		return nil
	}
	if now.Sub(st.lastNotified) < rule.Frequency {
		return nil
	}
	st.lastNotified = now
	if err := m.rules.TouchLastTriggered(ctx, rule.ID, now); err != nil {
		m.logger.WithError(err).Warnf("Failed to record last trigger for rule %s", rule.ID)
	}
	return []dispatchRequest{pendingDispatch(alert, rule, KindTrigger, rule.Channels)}
}

// Acknowledge moves an active alert to acknowledged and cancels every
// pending escalation timer for it.
func (m *LifecycleManager) Acknowledge(ctx context.Context, alertID, user string) error {
	stored, err := m.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}

	st := m.state(stored.RuleID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.alert == nil || st.alert.ID != alertID {
		return fmt.Errorf("alert %s is not live", alertID)
	}
	switch st.alert.Status {
	case StatusAcknowledged:
		return nil
	case StatusResolved:
		return fmt.Errorf("alert %s is already resolved", alertID)
	}

	now := m.clock.Now()
	st.alert.Status = StatusAcknowledged
	st.alert.AcknowledgedAt = &now
	st.alert.History = append(st.alert.History, AlertEvent{
		Timestamp: now, Type: EventAlertAcknowledged,
		Description: "acknowledged", User: user,
	})
	m.cancelTimersLocked(st)
	m.persist(ctx, st.alert)

	m.logger.Infof("Alert %s acknowledged by %s", alertID, user)
	m.events.Publish(Event{Type: EventAlertAcknowledged, EntityID: alertID, RuleID: stored.RuleID, Timestamp: now})
	return nil
}

// Resolve moves an alert to resolved. Resolving an already-resolved alert
// is a no-op, not an error.
func (m *LifecycleManager) Resolve(ctx context.Context, alertID, user string) error {
	stored, err := m.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	st := m.state(stored.RuleID)
	st.mu.Lock()

	if st.alert == nil || st.alert.ID != alertID || st.alert.Status == StatusResolved {
		st.mu.Unlock()
		return nil
	}

	rule, err := m.rules.GetRule(ctx, stored.RuleID)
	if err != nil {
		m.logger.WithError(err).Warnf("Resolving alert %s without rule context", alertID)
		rule = &AlertRule{ID: stored.RuleID, Name: stored.RuleName}
	}
	pending := m.resolveLocked(ctx, st, rule, "manually resolved", user, m.clock.Now())
	st.mu.Unlock()

	m.sendPending(ctx, pending)
	return nil
}

func (m *LifecycleManager) resolveLocked(ctx context.Context, st *ruleState, rule *AlertRule, reason, user string, now time.Time) []dispatchRequest {
	alert := st.alert
	alert.Status = StatusResolved
	alert.ResolvedAt = &now
	alert.History = append(alert.History, AlertEvent{
		Timestamp: now, Type: EventAlertResolved, Description: reason, User: user,
	})
	m.cancelTimersLocked(st)
	m.persist(ctx, alert)

	m.logger.Infof("Alert resolved: rule=%s reason=%s", rule.Name, reason)
	m.events.Publish(Event{Type: EventAlertResolved, EntityID: alert.ID, RuleID: rule.ID, Timestamp: now})
	if m.metrics != nil {
		m.metrics.ActiveAlerts.Dec()
	}
	return []dispatchRequest{pendingDispatch(alert, rule, KindResolution, rule.Channels)}
}

// armEscalationLocked arms the timer for the given escalation level. The
// delay counts from the previous level (or the trigger, for level 0).
func (m *LifecycleManager) armEscalationLocked(st *ruleState, rule *AlertRule, level int) {
	if level >= len(rule.Escalations) {
		return
	}
	delay := rule.Escalations[level].Delay
	handle := m.clock.AfterFunc(delay, func() {
		m.fireEscalation(rule, level)
	})
	st.timers = append(st.timers, handle)
}

// fireEscalation runs when an escalation delay elapses. A timer racing a
// cancellation re-checks alert status under the rule lock and backs out,
// so late fires are idempotent-safe.
func (m *LifecycleManager) fireEscalation(rule *AlertRule, level int) {
	st := m.state(rule.ID)
	st.mu.Lock()

	alert := st.alert
	if alert == nil || alert.Status != StatusActive || alert.EscalationLevel != level {
		st.mu.Unlock()
		return
	}

	now := m.clock.Now()
	if w := activeSuppression(rule, now); w != nil {
		// Escalation is silenced, not forfeited: retry the level after its
		// own delay once the window may have passed.
		m.logger.Debugf("Escalation level %d for rule %s suppressed by window %s", level, rule.ID, w.ID)
		m.armEscalationLocked(st, rule, level)
		st.mu.Unlock()
		return
	}

	ctx := context.Background()
	alert.EscalationLevel = level + 1
	alert.History = append(alert.History, AlertEvent{
		Timestamp: now, Type: EventAlertEscalated,
		Description: fmt.Sprintf("escalated to level %d", alert.EscalationLevel),
	})
	m.persist(ctx, alert)

	if m.metrics != nil {
		m.metrics.Escalations.Inc()
	}
	m.logger.Warnf("Alert escalated: rule=%s level=%d", rule.Name, alert.EscalationLevel)
	m.events.Publish(Event{
		Type: EventAlertEscalated, EntityID: alert.ID, RuleID: rule.ID, Timestamp: now,
		Payload: map[string]interface{}{"level": alert.EscalationLevel},
	})

	var pending []dispatchRequest
	for _, action := range rule.Escalations[level].Actions {
		switch action.Type {
		case ActionNotify:
			refs := action.Channels
			if len(refs) == 0 {
				refs = rule.Channels
			}
			pending = append(pending, pendingDispatch(alert, rule, KindEscalation, refs))
		case ActionAutoRemediate:
			// Remediation transport is owned by automation consumers; the
			// engine only announces the intent.
			m.events.Publish(Event{
				Type: EventAlertEscalated, EntityID: alert.ID, RuleID: rule.ID, Timestamp: now,
				Payload: map[string]interface{}{"action": "auto_remediate", "params": action.Params},
			})
		default:
			m.logger.Warnf("Unknown escalation action %q on rule %s", action.Type, rule.ID)
		}
	}

	m.armEscalationLocked(st, rule, level+1)
	st.mu.Unlock()

	m.sendPending(ctx, pending)
}

func (m *LifecycleManager) cancelTimersLocked(st *ruleState) {
	for _, t := range st.timers {
		t.Stop()
	}
	st.timers = nil
}

// DropRule cancels timers and forgets in-memory state for a removed or
// disabled rule. Persisted alerts are left for retention cleanup.
func (m *LifecycleManager) DropRule(ruleID string) {
	m.mu.Lock()
	st, ok := m.states[ruleID]
	if ok {
		delete(m.states, ruleID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	st.mu.Lock()
	m.cancelTimersLocked(st)
	st.mu.Unlock()
}

// Restore seeds in-memory state from a persisted non-resolved alert after
// a restart, re-arming the escalation chain at the alert's current level.
func (m *LifecycleManager) Restore(rule *AlertRule, alert *Alert) {
	st := m.state(rule.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	cp := *alert
	st.alert = &cp
	st.lastNotified = alert.LastSeenAt
	if cp.Status == StatusActive {
		m.armEscalationLocked(st, rule, cp.EscalationLevel)
	}
}

// ActiveAlert returns a copy of the rule's live alert, or nil.
func (m *LifecycleManager) ActiveAlert(ruleID string) *Alert {
	st := m.state(ruleID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.alert == nil || st.alert.Status == StatusResolved {
		return nil
	}
	cp := *st.alert
	return &cp
}

func (m *LifecycleManager) persist(ctx context.Context, alert *Alert) {
	if err := m.alerts.SaveAlert(ctx, alert); err != nil {
		m.logger.WithError(err).Errorf("Failed to persist alert %s", alert.ID)
	}
}
