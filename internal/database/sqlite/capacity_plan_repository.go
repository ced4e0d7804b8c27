package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
)

// CapacityPlanRepository implements monitoring.PlanStore.
type CapacityPlanRepository struct {
	db *sqlx.DB
}

// NewCapacityPlanRepository creates a capacity plan repository.
func NewCapacityPlanRepository(db *sqlx.DB) *CapacityPlanRepository {
	return &CapacityPlanRepository{db: db}
}

type capacityPlanRow struct {
	ID              string    `db:"id"`
	Resource        string    `db:"resource"`
	Metric          string    `db:"metric"`
	Aggregation     string    `db:"aggregation"`
	CurrentUsage    float64   `db:"current_usage"`
	ProjectedUsage  float64   `db:"projected_usage"`
	TimeHorizon     int64     `db:"time_horizon"`
	Confidence      float64   `db:"confidence"`
	Factors         string    `db:"factors"`
	Recommendations string    `db:"recommendations"`
	Risks           string    `db:"risks"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func planToRow(plan *monitoring.CapacityPlan) (*capacityPlanRow, error) {
	factors, err := marshalJSON(plan.Factors)
	if err != nil {
		return nil, err
	}
	recommendations, err := marshalJSON(plan.Recommendations)
	if err != nil {
		return nil, err
	}
	risks, err := marshalJSON(plan.Risks)
	if err != nil {
		return nil, err
	}
	return &capacityPlanRow{
		ID:              plan.ID,
		Resource:        plan.Resource,
		Metric:          plan.Metric,
		Aggregation:     string(plan.Aggregation),
		CurrentUsage:    plan.CurrentUsage,
		ProjectedUsage:  plan.ProjectedUsage,
		TimeHorizon:     int64(plan.TimeHorizon),
		Confidence:      plan.Confidence,
		Factors:         factors,
		Recommendations: recommendations,
		Risks:           risks,
		UpdatedAt:       plan.UpdatedAt,
	}, nil
}

func rowToPlan(row *capacityPlanRow) (*monitoring.CapacityPlan, error) {
	plan := &monitoring.CapacityPlan{
		ID:             row.ID,
		Resource:       row.Resource,
		Metric:         row.Metric,
		Aggregation:    monitoring.Aggregation(row.Aggregation),
		CurrentUsage:   row.CurrentUsage,
		ProjectedUsage: row.ProjectedUsage,
		TimeHorizon:    time.Duration(row.TimeHorizon),
		Confidence:     row.Confidence,
		UpdatedAt:      row.UpdatedAt,
	}
	if err := unmarshalJSON(row.Factors, &plan.Factors); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Recommendations, &plan.Recommendations); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Risks, &plan.Risks); err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *CapacityPlanRepository) CreatePlan(ctx context.Context, plan *monitoring.CapacityPlan) error {
	row, err := planToRow(plan)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO capacity_plans (id, resource, metric, aggregation, current_usage,
			projected_usage, time_horizon, confidence, factors, recommendations, risks, updated_at)
		VALUES (:id, :resource, :metric, :aggregation, :current_usage,
			:projected_usage, :time_horizon, :confidence, :factors, :recommendations, :risks, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to create capacity plan: %w", err)
	}
	return nil
}

func (r *CapacityPlanRepository) GetPlan(ctx context.Context, id string) (*monitoring.CapacityPlan, error) {
	var row capacityPlanRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM capacity_plans WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("capacity plan %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capacity plan: %w", err)
	}
	return rowToPlan(&row)
}

func (r *CapacityPlanRepository) ListPlans(ctx context.Context) ([]*monitoring.CapacityPlan, error) {
	var rows []capacityPlanRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM capacity_plans ORDER BY resource`); err != nil {
		return nil, fmt.Errorf("failed to list capacity plans: %w", err)
	}
	plans := make([]*monitoring.CapacityPlan, 0, len(rows))
	for i := range rows {
		plan, err := rowToPlan(&rows[i])
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (r *CapacityPlanRepository) UpdatePlan(ctx context.Context, plan *monitoring.CapacityPlan) error {
	row, err := planToRow(plan)
	if err != nil {
		return err
	}
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE capacity_plans SET resource = :resource, metric = :metric, aggregation = :aggregation,
			current_usage = :current_usage, projected_usage = :projected_usage,
			time_horizon = :time_horizon, confidence = :confidence, factors = :factors,
			recommendations = :recommendations, risks = :risks, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("failed to update capacity plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("capacity plan %s not found", plan.ID)
	}
	return nil
}

func (r *CapacityPlanRepository) DeletePlan(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM capacity_plans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete capacity plan: %w", err)
	}
	return nil
}
