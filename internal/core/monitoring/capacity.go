package monitoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// CapacityProjector recomputes capacity plans on a fixed cadence. The
// projection is current usage scaled by the confidence-weighted sum of
// growth factors, clamped to zero. Threshold breaches are edge-triggered:
// one event per crossing, re-armed only after the projection drops back
// below the threshold.
type CapacityProjector struct {
	clock     Clock
	logger    *logrus.Logger
	source    MetricSource
	plans     PlanStore
	events    EventSink
	threshold float64

	mu    sync.Mutex
	above map[string]bool
}

// NewCapacityProjector creates a projector emitting threshold events when
// projected utilization crosses the given threshold.
func NewCapacityProjector(clock Clock, source MetricSource, plans PlanStore, events EventSink, threshold float64, logger *logrus.Logger) *CapacityProjector {
	if events == nil {
		events = NopSink{}
	}
	return &CapacityProjector{
		clock:     clock,
		logger:    logger,
		source:    source,
		plans:     plans,
		events:    events,
		threshold: threshold,
		above:     make(map[string]bool),
	}
}

// RecomputeAll refreshes every stored plan. Per-plan failures are logged
// and skipped so one plan's bad metric never stalls the rest.
func (p *CapacityProjector) RecomputeAll(ctx context.Context) {
	plans, err := p.plans.ListPlans(ctx)
	if err != nil {
		p.logger.WithError(err).Error("Failed to list capacity plans")
		return
	}
	for _, plan := range plans {
		if _, err := p.Recompute(ctx, plan); err != nil {
			p.logger.WithError(err).Warnf("Capacity recompute failed for plan %s", plan.ID)
		}
	}
}

// Recompute refreshes current usage from the metric source, derives the
// projection, recommendations and risks, and persists the plan.
func (p *CapacityProjector) Recompute(ctx context.Context, plan *CapacityPlan) (*CapacityPlan, error) {
	current, err := p.source.Query(ctx, plan.Metric, plan.Aggregation, plan.TimeHorizon, nil)
	if err != nil {
		return nil, fmt.Errorf("refresh current usage for plan %s: %w", plan.ID, err)
	}
	plan.CurrentUsage = current

	growth := 0.0
	for _, f := range plan.Factors {
		growth += f.Impact * f.Confidence
	}
	projected := current * (1 + growth)
	if projected < 0 {
		projected = 0
	}
	plan.ProjectedUsage = projected
	plan.Recommendations, plan.Risks = p.advise(plan)
	plan.UpdatedAt = p.clock.Now()

	if err := p.plans.UpdatePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("persist plan %s: %w", plan.ID, err)
	}

	p.trackCrossing(plan)
	return plan, nil
}

// trackCrossing emits capacity.threshold_exceeded exactly once per upward
// crossing of the utilization threshold.
func (p *CapacityProjector) trackCrossing(plan *CapacityPlan) {
	nowAbove := plan.ProjectedUsage >= p.threshold

	p.mu.Lock()
	wasAbove := p.above[plan.ID]
	p.above[plan.ID] = nowAbove
	p.mu.Unlock()

	if nowAbove && !wasAbove {
		p.logger.Warnf("Capacity threshold exceeded: resource=%s projected=%.2f threshold=%.2f",
			plan.Resource, plan.ProjectedUsage, p.threshold)
		p.events.Publish(Event{
			Type:      EventCapacityExceeded,
			EntityID:  plan.ID,
			Timestamp: p.clock.Now(),
			Payload: map[string]interface{}{
				"resource":  plan.Resource,
				"projected": plan.ProjectedUsage,
				"threshold": p.threshold,
			},
		})
	}
}

func (p *CapacityProjector) advise(plan *CapacityPlan) (recommendations, risks []string) {
	if plan.ProjectedUsage >= p.threshold {
		recommendations = append(recommendations,
			fmt.Sprintf("provision additional %s capacity before projected demand is reached", plan.Resource))
		risks = append(risks,
			fmt.Sprintf("projected utilization %.1f%% exceeds the %.0f%% threshold", plan.ProjectedUsage, p.threshold))
	}
	for _, f := range plan.Factors {
		if f.Impact > 0 && f.Confidence >= 0.8 {
			risks = append(risks, fmt.Sprintf("growth factor %q adds %.0f%% with high confidence", f.Name, f.Impact*100))
		}
	}
	if plan.ProjectedUsage < plan.CurrentUsage {
		recommendations = append(recommendations,
			fmt.Sprintf("consider rightsizing %s, projected demand is below current usage", plan.Resource))
	}
	return recommendations, risks
}

// Forget drops crossing state for a deleted plan.
func (p *CapacityProjector) Forget(planID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.above, planID)
}
