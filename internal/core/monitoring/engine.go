package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// EngineConfig tunes the engine's cadences and timeouts.
type EngineConfig struct {
	DefaultEvaluationInterval time.Duration
	QueryTimeout              time.Duration
	SendTimeout               time.Duration
	DefaultRateLimit          time.Duration
	AlertRetention            time.Duration
	CapacityInterval          time.Duration
	UtilizationThreshold      float64
	// FailureStreak is how many consecutive metric-source failures a rule
	// tolerates before the engine emits rule.evaluation_failed.
	FailureStreak   int
	EqualityEpsilon float64
	Thresholds      RegressionThresholds
}

func (c *EngineConfig) applyDefaults() {
	if c.DefaultEvaluationInterval <= 0 {
		c.DefaultEvaluationInterval = time.Minute
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 10 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.AlertRetention <= 0 {
		c.AlertRetention = 7 * 24 * time.Hour
	}
	if c.CapacityInterval <= 0 {
		c.CapacityInterval = time.Hour
	}
	if c.UtilizationThreshold <= 0 {
		c.UtilizationThreshold = 80.0
	}
	if c.FailureStreak <= 0 {
		c.FailureStreak = 3
	}
	if c.Thresholds == (RegressionThresholds{}) {
		c.Thresholds = DefaultRegressionThresholds()
	}
}

// Deps carries the engine's injected collaborators. Everything external is
// an interface so tests run multiple isolated engines with fakes.
type Deps struct {
	Clock    Clock
	Logger   *logrus.Logger
	Source   MetricSource
	Rules    RuleStore
	Alerts   AlertStore
	Plans    PlanStore
	Tests    TestStore
	Channels []Channel
	Events   EventSink
	Metrics  *Metrics
}

// Engine runs the production-monitoring core: per-rule evaluation loops,
// the alert lifecycle, capacity recomputes and regression verdicts. Each
// rule evaluates on its own goroutine, so a slow metric query for one rule
// never delays another rule's tick.
type Engine struct {
	cfg    EngineConfig
	clock  Clock
	logger *logrus.Logger
	source MetricSource

	rules  RuleStore
	alerts AlertStore
	plans  PlanStore
	tests  TestStore

	evaluator  *Evaluator
	lifecycle  *LifecycleManager
	dispatcher *Dispatcher
	projector  *CapacityProjector
	detector   *RegressionDetector
	events     EventSink
	metrics    *Metrics

	cron *cron.Cron

	mu       sync.Mutex
	loops    map[string]chan struct{}
	failures map[string]int
	started  bool
	wg       sync.WaitGroup
}

// NewEngine constructs an engine instance. No global state: callers own
// the lifetime and may run several isolated instances side by side.
func NewEngine(cfg EngineConfig, deps Deps) *Engine {
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = NewSystemClock()
	}
	if deps.Events == nil {
		deps.Events = NopSink{}
	}

	dispatcher := NewDispatcher(deps.Channels, deps.Clock, cfg.SendTimeout, cfg.DefaultRateLimit, deps.Logger)
	lifecycle := NewLifecycleManager(deps.Clock, dispatcher, deps.Alerts, deps.Rules, deps.Events, deps.Logger)
	lifecycle.SetMetrics(deps.Metrics)

	return &Engine{
		cfg:        cfg,
		clock:      deps.Clock,
		logger:     deps.Logger,
		source:     deps.Source,
		rules:      deps.Rules,
		alerts:     deps.Alerts,
		plans:      deps.Plans,
		tests:      deps.Tests,
		evaluator:  NewEvaluator(cfg.EqualityEpsilon),
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		projector:  NewCapacityProjector(deps.Clock, deps.Source, deps.Plans, deps.Events, cfg.UtilizationThreshold, deps.Logger),
		detector:   NewRegressionDetector(cfg.Thresholds),
		events:     deps.Events,
		metrics:    deps.Metrics,
		loops:      make(map[string]chan struct{}),
		failures:   make(map[string]int),
	}
}

// Lifecycle exposes the alert state machine for API handlers.
func (e *Engine) Lifecycle() *LifecycleManager { return e.lifecycle }

// Projector exposes the capacity projector for API handlers.
func (e *Engine) Projector() *CapacityProjector { return e.projector }

// Start rehydrates live alerts, starts an evaluation loop per enabled rule
// and schedules the capacity and retention cadences.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.started = true
	e.mu.Unlock()

	rules, err := e.rules.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	e.rehydrate(ctx, rules)

	for _, rule := range rules {
		if rule.Enabled {
			e.startLoop(rule)
		}
	}

	e.cron = cron.New()
	if _, err := e.cron.AddFunc(fmt.Sprintf("@every %s", e.cfg.CapacityInterval), func() {
		if e.metrics != nil {
			e.metrics.CapacityRecomputes.Inc()
		}
		e.projector.RecomputeAll(context.Background())
	}); err != nil {
		e.logger.WithError(err).Error("Failed to schedule capacity recompute")
	}
	if _, err := e.cron.AddFunc("@every 1h", func() { e.cleanupAlerts(context.Background()) }); err != nil {
		e.logger.WithError(err).Error("Failed to schedule retention cleanup")
	}
	e.cron.Start()

	e.logger.Infof("Monitoring engine started with %d rules", len(rules))
	return nil
}

// Stop halts every evaluation loop and scheduled cadence.
func (e *Engine) Stop() {
	e.mu.Lock()
	for id, stop := range e.loops {
		close(stop)
		delete(e.loops, id)
	}
	e.started = false
	e.mu.Unlock()

	if e.cron != nil {
		e.cron.Stop()
	}
	e.wg.Wait()
	e.logger.Info("Monitoring engine stopped")
}

// rehydrate restores lifecycle state for persisted non-resolved alerts so
// escalation chains survive restarts.
func (e *Engine) rehydrate(ctx context.Context, rules []*AlertRule) {
	byID := make(map[string]*AlertRule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}
	for _, status := range []AlertStatus{StatusActive, StatusAcknowledged} {
		alerts, err := e.alerts.ListAlerts(ctx, status)
		if err != nil {
			e.logger.WithError(err).Warn("Failed to rehydrate alerts")
			return
		}
		for _, alert := range alerts {
			rule, ok := byID[alert.RuleID]
			if !ok {
				continue
			}
			e.lifecycle.Restore(rule, alert)
		}
	}
}

// RegisterRule validates and persists a rule, then begins evaluating it.
// Validation failures never reach the evaluation loop.
func (e *Engine) RegisterRule(ctx context.Context, rule *AlertRule) error {
	if rule.EvaluationInterval == 0 {
		rule.EvaluationInterval = e.cfg.DefaultEvaluationInterval
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := e.clock.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := e.rules.CreateRule(ctx, rule); err != nil {
		return fmt.Errorf("persist rule: %w", err)
	}

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started && rule.Enabled {
		e.startLoop(rule)
	}
	e.logger.Infof("Registered alert rule %s (%s)", rule.Name, rule.ID)
	return nil
}

// UpdateRule revalidates and persists a changed rule and restarts its loop.
func (e *Engine) UpdateRule(ctx context.Context, rule *AlertRule) error {
	if rule.EvaluationInterval == 0 {
		rule.EvaluationInterval = e.cfg.DefaultEvaluationInterval
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = e.clock.Now()
	if err := e.rules.UpdateRule(ctx, rule); err != nil {
		return fmt.Errorf("persist rule: %w", err)
	}

	e.stopLoop(rule.ID)
	if !rule.Enabled {
		// A disabled rule is never evaluated or escalated.
		e.lifecycle.DropRule(rule.ID)
		return nil
	}
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		e.startLoop(rule)
	}
	return nil
}

// RemoveRule stops evaluation and deletes the rule.
func (e *Engine) RemoveRule(ctx context.Context, ruleID string) error {
	e.stopLoop(ruleID)
	e.lifecycle.DropRule(ruleID)
	return e.rules.DeleteRule(ctx, ruleID)
}

func (e *Engine) startLoop(rule *AlertRule) {
	e.mu.Lock()
	if _, running := e.loops[rule.ID]; running {
		e.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	e.loops[rule.ID] = stop
	e.mu.Unlock()

	ticker := e.clock.NewTicker(rule.EvaluationInterval)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				e.evaluateRule(context.Background(), rule)
			}
		}
	}()
}

func (e *Engine) stopLoop(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stop, ok := e.loops[ruleID]; ok {
		close(stop)
		delete(e.loops, ruleID)
	}
}

// evaluateRule runs one tick for one rule. A metric-source failure is
// "condition unknown": logged and counted, never a state transition.
func (e *Engine) evaluateRule(ctx context.Context, rule *AlertRule) {
	if e.metrics != nil {
		e.metrics.Evaluations.WithLabelValues(rule.ID).Inc()
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	value, err := e.source.Query(queryCtx, rule.Condition.Metric, rule.Condition.Aggregation, rule.Condition.TimeWindow, rule.Condition.Filters)
	cancel()
	if err != nil {
		e.recordEvaluationFailure(rule, err)
		return
	}

	e.mu.Lock()
	e.failures[rule.ID] = 0
	e.mu.Unlock()

	met, err := e.evaluator.Evaluate(rule.Condition, value)
	if err != nil {
		// Operators are validated at registration; reaching this means the
		// stored rule was corrupted out of band.
		e.logger.WithError(err).Errorf("Rule %s has an invalid condition", rule.ID)
		return
	}

	e.lifecycle.HandleTick(ctx, rule, met, value)
}

func (e *Engine) recordEvaluationFailure(rule *AlertRule, err error) {
	if e.metrics != nil {
		e.metrics.EvaluationFailures.WithLabelValues(rule.ID).Inc()
	}

	e.mu.Lock()
	e.failures[rule.ID]++
	streak := e.failures[rule.ID]
	e.mu.Unlock()

	e.logger.WithError(err).Warnf("Metric query failed for rule %s (streak %d)", rule.ID, streak)
	if streak == e.cfg.FailureStreak {
		e.events.Publish(Event{
			Type:      EventRuleEvaluationFailed,
			EntityID:  rule.ID,
			RuleID:    rule.ID,
			Timestamp: e.clock.Now(),
			Payload:   map[string]interface{}{"error": err.Error(), "streak": streak},
		})
	}
}

// RecordTestResult stores an immutable result with its regression verdict
// and emits performance.regression_detected when a metric regressed.
func (e *Engine) RecordTestResult(ctx context.Context, result *TestResult) (*TestResult, error) {
	test, err := e.tests.GetTest(ctx, result.TestID)
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", result.TestID, err)
	}

	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	result.RecordedAt = e.clock.Now()

	verdict := e.detector.Compare(test.Baseline, result)
	result.Verdict = &verdict

	if err := e.tests.AddResult(ctx, result); err != nil {
		return nil, fmt.Errorf("persist result: %w", err)
	}

	if verdict.Regression {
		if e.metrics != nil {
			e.metrics.RegressionsFound.Inc()
		}
		violated := make([]string, 0, len(verdict.Violations))
		for _, v := range verdict.Violations {
			violated = append(violated, v.Metric)
		}
		e.logger.Warnf("Performance regression detected: test=%s metrics=%v", test.Name, violated)
		e.events.Publish(Event{
			Type:      EventRegressionDetected,
			EntityID:  result.ID,
			Timestamp: result.RecordedAt,
			Payload:   map[string]interface{}{"test_id": test.ID, "violations": violated},
		})
	}
	return result, nil
}

// cleanupAlerts purges resolved alerts past the retention horizon.
func (e *Engine) cleanupAlerts(ctx context.Context) {
	cutoff := e.clock.Now().Add(-e.cfg.AlertRetention)
	n, err := e.alerts.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		e.logger.WithError(err).Error("Alert retention cleanup failed")
		return
	}
	if n > 0 {
		e.logger.Infof("Cleaned up %d resolved alerts", n)
	}
}
