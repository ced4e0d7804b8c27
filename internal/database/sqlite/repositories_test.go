package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../../migrations/000001_monitoring_schema.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return db
}

func TestAlertRuleRepositoryRoundTrip(t *testing.T) {
	repo := NewAlertRuleRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rule := &monitoring.AlertRule{
		ID: "rule-1", Name: "High CPU", Description: "sustained saturation", Enabled: true,
		Condition: monitoring.Condition{
			Metric: "system.cpu.usage", Aggregation: monitoring.AggAvg,
			Operator: monitoring.OpGreaterThan, Threshold: 90, TimeWindow: 5 * time.Minute,
		},
		EvaluationInterval: time.Minute,
		Severity:           monitoring.SeverityHigh,
		Frequency:          15 * time.Minute,
		Labels:             map[string]string{"team": "infra"},
		Channels:           []monitoring.ChannelRef{{ChannelID: "slack", Recipient: "#ops"}},
		Escalations: []monitoring.EscalationLevel{{
			Delay: 10 * time.Minute,
			Actions: []monitoring.EscalationAction{{
				Type:     monitoring.ActionNotify,
				Channels: []monitoring.ChannelRef{{ChannelID: "pager", Recipient: "oncall"}},
			}},
		}},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateRule(ctx, rule))

	got, err := repo.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, rule.Condition, got.Condition)
	assert.Equal(t, rule.Labels, got.Labels)
	assert.Equal(t, rule.Channels, got.Channels)
	assert.Equal(t, rule.Escalations, got.Escalations)
	assert.Nil(t, got.LastTriggeredAt)

	got.Enabled = false
	got.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, repo.UpdateRule(ctx, got))

	triggered := now.Add(2 * time.Hour)
	require.NoError(t, repo.TouchLastTriggered(ctx, "rule-1", triggered))

	got, err = repo.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, got.LastTriggeredAt.Equal(triggered))

	rules, err := repo.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	require.NoError(t, repo.DeleteRule(ctx, "rule-1"))
	_, err = repo.GetRule(ctx, "rule-1")
	assert.ErrorContains(t, err, "not found")
}

func TestAlertRuleRepositoryUpdateMissing(t *testing.T) {
	repo := NewAlertRuleRepository(openTestDB(t))

	err := repo.UpdateRule(context.Background(), &monitoring.AlertRule{ID: "ghost", Name: "ghost"})
	assert.ErrorContains(t, err, "not found")
}

func TestAlertRepositorySaveIsUpsert(t *testing.T) {
	repo := NewAlertRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	alert := &monitoring.Alert{
		ID: "alert-1", RuleID: "rule-1", RuleName: "High CPU",
		Severity: monitoring.SeverityHigh, Status: monitoring.StatusActive,
		Value: 95, FirstTriggeredAt: now, LastSeenAt: now,
		History: []monitoring.AlertEvent{{
			Timestamp: now, Type: monitoring.EventAlertTriggered,
			Description: "value 95.0 gt 90.0", Value: 95,
		}},
	}
	require.NoError(t, repo.SaveAlert(ctx, alert))

	resolvedAt := now.Add(time.Hour)
	alert.Status = monitoring.StatusResolved
	alert.ResolvedAt = &resolvedAt
	alert.LastSeenAt = resolvedAt
	alert.History = append(alert.History, monitoring.AlertEvent{
		Timestamp: resolvedAt, Type: monitoring.EventAlertResolved, Description: "condition cleared",
	})
	require.NoError(t, repo.SaveAlert(ctx, alert))

	got, err := repo.GetAlert(ctx, "alert-1")
	require.NoError(t, err)
	assert.Equal(t, monitoring.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	require.Len(t, got.History, 2)
	assert.Equal(t, monitoring.EventAlertResolved, got.History[1].Type)

	all, err := repo.ListAlerts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert must not duplicate the row")
}

func TestAlertRepositoryListByStatus(t *testing.T) {
	repo := NewAlertRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	resolvedAt := now.Add(time.Minute)

	require.NoError(t, repo.SaveAlert(ctx, &monitoring.Alert{
		ID: "a1", RuleID: "r1", RuleName: "one", Severity: monitoring.SeverityLow,
		Status: monitoring.StatusActive, FirstTriggeredAt: now, LastSeenAt: now,
	}))
	require.NoError(t, repo.SaveAlert(ctx, &monitoring.Alert{
		ID: "a2", RuleID: "r2", RuleName: "two", Severity: monitoring.SeverityLow,
		Status: monitoring.StatusResolved, FirstTriggeredAt: now.Add(time.Hour),
		LastSeenAt: now.Add(time.Hour), ResolvedAt: &resolvedAt,
	}))

	active, err := repo.ListAlerts(ctx, monitoring.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a1", active[0].ID)

	all, err := repo.ListAlerts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a2", all[0].ID, "newest first")
}

func TestAlertRepositoryRetention(t *testing.T) {
	repo := NewAlertRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)
	require.NoError(t, repo.SaveAlert(ctx, &monitoring.Alert{
		ID: "stale", RuleID: "r1", RuleName: "one", Severity: monitoring.SeverityLow,
		Status: monitoring.StatusResolved, FirstTriggeredAt: old, LastSeenAt: old, ResolvedAt: &old,
	}))
	require.NoError(t, repo.SaveAlert(ctx, &monitoring.Alert{
		ID: "fresh", RuleID: "r2", RuleName: "two", Severity: monitoring.SeverityLow,
		Status: monitoring.StatusResolved, FirstTriggeredAt: recent, LastSeenAt: recent, ResolvedAt: &recent,
	}))
	require.NoError(t, repo.SaveAlert(ctx, &monitoring.Alert{
		ID: "live", RuleID: "r3", RuleName: "three", Severity: monitoring.SeverityLow,
		Status: monitoring.StatusActive, FirstTriggeredAt: old, LastSeenAt: now,
	}))

	deleted, err := repo.DeleteResolvedBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetAlert(ctx, "stale")
	assert.Error(t, err)
	_, err = repo.GetAlert(ctx, "fresh")
	assert.NoError(t, err)
	_, err = repo.GetAlert(ctx, "live")
	assert.NoError(t, err, "active alerts survive retention regardless of age")
}

func TestCapacityPlanRepository(t *testing.T) {
	repo := NewCapacityPlanRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	plan := &monitoring.CapacityPlan{
		ID: "plan-1", Resource: "storage", Metric: "system.disk.usage",
		Aggregation: monitoring.AggAvg, CurrentUsage: 60, TimeHorizon: 90 * 24 * time.Hour,
		Factors:   []monitoring.CapacityFactor{{Name: "growth", Impact: 0.2, Trend: "increasing", Confidence: 0.8}},
		UpdatedAt: now,
	}
	require.NoError(t, repo.CreatePlan(ctx, plan))

	got, err := repo.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, plan.Factors, got.Factors)
	assert.Equal(t, 90*24*time.Hour, got.TimeHorizon)

	got.ProjectedUsage = 69.6
	got.Recommendations = []string{"plan expansion within the horizon"}
	require.NoError(t, repo.UpdatePlan(ctx, got))

	plans, err := repo.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 69.6, plans[0].ProjectedUsage)
	assert.Equal(t, []string{"plan expansion within the horizon"}, plans[0].Recommendations)

	require.NoError(t, repo.DeletePlan(ctx, "plan-1"))
	_, err = repo.GetPlan(ctx, "plan-1")
	assert.ErrorContains(t, err, "not found")

	err = repo.UpdatePlan(ctx, &monitoring.CapacityPlan{ID: "plan-1", Resource: "storage", Metric: "m"})
	assert.ErrorContains(t, err, "not found")
}

func TestPerformanceTestRepository(t *testing.T) {
	repo := NewPerformanceTestRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateTest(ctx, &monitoring.PerformanceTest{
		ID: "test-1", Name: "checkout flow", CreatedAt: now,
	}))

	got, err := repo.GetTest(ctx, "test-1")
	require.NoError(t, err)
	assert.Nil(t, got.Baseline)

	require.NoError(t, repo.SetBaseline(ctx, "test-1", &monitoring.TestBaseline{
		ResponseTime: 200, Throughput: 1000, ErrorRate: 0.5, RecordedAt: now,
	}))
	got, err = repo.GetTest(ctx, "test-1")
	require.NoError(t, err)
	require.NotNil(t, got.Baseline)
	assert.Equal(t, 200.0, got.Baseline.ResponseTime)

	assert.ErrorContains(t, repo.SetBaseline(ctx, "ghost", &monitoring.TestBaseline{}), "not found")

	first := &monitoring.TestResult{
		ID: "res-1", TestID: "test-1", AvgResponseTime: 210, Throughput: 980,
		ErrorRate: 0.6, RecordedAt: now.Add(time.Hour),
		Verdict: &monitoring.RegressionVerdict{Regression: false},
	}
	second := &monitoring.TestResult{
		ID: "res-2", TestID: "test-1", AvgResponseTime: 300, Throughput: 700,
		ErrorRate: 2.5, RecordedAt: now.Add(2 * time.Hour),
		Verdict: &monitoring.RegressionVerdict{
			Regression: true,
			Violations: []monitoring.MetricViolation{{
				Metric: monitoring.RegressionMetricResponseTime, Baseline: 200, Observed: 300, Delta: 0.5,
			}},
		},
	}
	require.NoError(t, repo.AddResult(ctx, first))
	require.NoError(t, repo.AddResult(ctx, second))

	results, err := repo.ListResults(ctx, "test-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "res-1", results[0].ID, "results come back in recording order")
	require.NotNil(t, results[1].Verdict)
	assert.True(t, results[1].Verdict.Regression)
	assert.Nil(t, results[0].Verdict.Violations)

	tests, err := repo.ListTests(ctx)
	require.NoError(t, err)
	assert.Len(t, tests, 1)
}
