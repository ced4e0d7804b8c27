package monitoring

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// --- in-memory stores ---

type memRuleStore struct {
	mu    sync.Mutex
	rules map[string]*AlertRule
}

func newMemRuleStore() *memRuleStore {
	return &memRuleStore{rules: make(map[string]*AlertRule)}
}

func (s *memRuleStore) CreateRule(_ context.Context, rule *AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; ok {
		return fmt.Errorf("alert rule %s already exists", rule.ID)
	}
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *memRuleStore) GetRule(_ context.Context, id string) (*AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("alert rule %s not found", id)
	}
	cp := *rule
	return &cp, nil
}

func (s *memRuleStore) ListRules(_ context.Context) ([]*AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AlertRule, 0, len(s.rules))
	for _, rule := range s.rules {
		cp := *rule
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memRuleStore) UpdateRule(_ context.Context, rule *AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; !ok {
		return fmt.Errorf("alert rule %s not found", rule.ID)
	}
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *memRuleStore) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

func (s *memRuleStore) TouchLastTriggered(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule, ok := s.rules[id]; ok {
		t := at
		rule.LastTriggeredAt = &t
	}
	return nil
}

type memAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*Alert
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{alerts: make(map[string]*Alert)}
}

func (s *memAlertStore) SaveAlert(_ context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *alert
	cp.History = append([]AlertEvent(nil), alert.History...)
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *memAlertStore) GetAlert(_ context.Context, id string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s not found", id)
	}
	cp := *alert
	return &cp, nil
}

func (s *memAlertStore) ListAlerts(_ context.Context, status AlertStatus) ([]*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if status != "" && alert.Status != status {
			continue
		}
		cp := *alert
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memAlertStore) DeleteResolvedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, alert := range s.alerts {
		if alert.Status == StatusResolved && alert.ResolvedAt != nil && alert.ResolvedAt.Before(cutoff) {
			delete(s.alerts, id)
			n++
		}
	}
	return n, nil
}

type memPlanStore struct {
	mu    sync.Mutex
	plans map[string]*CapacityPlan
}

func newMemPlanStore() *memPlanStore {
	return &memPlanStore{plans: make(map[string]*CapacityPlan)}
}

func (s *memPlanStore) CreatePlan(_ context.Context, plan *CapacityPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (s *memPlanStore) GetPlan(_ context.Context, id string) (*CapacityPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("capacity plan %s not found", id)
	}
	cp := *plan
	return &cp, nil
}

func (s *memPlanStore) ListPlans(_ context.Context) ([]*CapacityPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*CapacityPlan, 0, len(s.plans))
	for _, plan := range s.plans {
		cp := *plan
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memPlanStore) UpdatePlan(_ context.Context, plan *CapacityPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[plan.ID]; !ok {
		return fmt.Errorf("capacity plan %s not found", plan.ID)
	}
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (s *memPlanStore) DeletePlan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, id)
	return nil
}

type memTestStore struct {
	mu      sync.Mutex
	tests   map[string]*PerformanceTest
	results map[string][]*TestResult
}

func newMemTestStore() *memTestStore {
	return &memTestStore{
		tests:   make(map[string]*PerformanceTest),
		results: make(map[string][]*TestResult),
	}
}

func (s *memTestStore) CreateTest(_ context.Context, test *PerformanceTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *test
	s.tests[test.ID] = &cp
	return nil
}

func (s *memTestStore) GetTest(_ context.Context, id string) (*PerformanceTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	test, ok := s.tests[id]
	if !ok {
		return nil, fmt.Errorf("performance test %s not found", id)
	}
	cp := *test
	return &cp, nil
}

func (s *memTestStore) ListTests(_ context.Context) ([]*PerformanceTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PerformanceTest, 0, len(s.tests))
	for _, test := range s.tests {
		cp := *test
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memTestStore) SetBaseline(_ context.Context, testID string, baseline *TestBaseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	test, ok := s.tests[testID]
	if !ok {
		return fmt.Errorf("performance test %s not found", testID)
	}
	cp := *baseline
	test.Baseline = &cp
	return nil
}

func (s *memTestStore) AddResult(_ context.Context, result *TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *result
	s.results[result.TestID] = append(s.results[result.TestID], &cp)
	return nil
}

func (s *memTestStore) ListResults(_ context.Context, testID string) ([]*TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*TestResult(nil), s.results[testID]...), nil
}

// --- fake channel ---

type sentMessage struct {
	Recipient string
	Subject   string
	Body      string
}

type fakeChannel struct {
	mu       sync.Mutex
	id       string
	disabled bool
	err      error
	gate     chan struct{}
	sent     []sentMessage
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id}
}

func (c *fakeChannel) ID() string    { return c.id }
func (c *fakeChannel) Type() string  { return "fake" }
func (c *fakeChannel) Enabled() bool { return !c.disabled }

// block makes every Send wait until the returned channel is closed,
// simulating a slow transport.
func (c *fakeChannel) block() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
	return c.gate
}

func (c *fakeChannel) Send(_ context.Context, recipient, subject, body string) error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMessage{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeChannel) lastSent() sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}

// --- collecting event sink ---

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) byType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// --- fake metric source ---

type fakeSource struct {
	mu    sync.Mutex
	value float64
	err   error
	calls int
}

func (s *fakeSource) set(value float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.err = err
}

func (s *fakeSource) Query(_ context.Context, _ string, _ Aggregation, _ time.Duration, _ map[string]string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.value, nil
}
