package monitoring

import (
	"context"
	"time"
)

// RuleStore persists alert rule definitions. The engine reads rules and
// updates last-trigger bookkeeping; administrators own everything else.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *AlertRule) error
	GetRule(ctx context.Context, id string) (*AlertRule, error)
	ListRules(ctx context.Context) ([]*AlertRule, error)
	UpdateRule(ctx context.Context, rule *AlertRule) error
	DeleteRule(ctx context.Context, id string) error
	TouchLastTriggered(ctx context.Context, id string, at time.Time) error
}

// AlertStore persists alert instances and their lifecycle history.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id string) (*Alert, error)
	ListAlerts(ctx context.Context, status AlertStatus) ([]*Alert, error)
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PlanStore persists capacity plans.
type PlanStore interface {
	CreatePlan(ctx context.Context, plan *CapacityPlan) error
	GetPlan(ctx context.Context, id string) (*CapacityPlan, error)
	ListPlans(ctx context.Context) ([]*CapacityPlan, error)
	UpdatePlan(ctx context.Context, plan *CapacityPlan) error
	DeletePlan(ctx context.Context, id string) error
}

// TestStore persists performance tests, baselines and immutable results.
type TestStore interface {
	CreateTest(ctx context.Context, test *PerformanceTest) error
	GetTest(ctx context.Context, id string) (*PerformanceTest, error)
	ListTests(ctx context.Context) ([]*PerformanceTest, error)
	SetBaseline(ctx context.Context, testID string, baseline *TestBaseline) error
	AddResult(ctx context.Context, result *TestResult) error
	ListResults(ctx context.Context, testID string) ([]*TestResult, error)
}
