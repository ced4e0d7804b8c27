package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
)

// AlertRuleRepository implements monitoring.RuleStore.
type AlertRuleRepository struct {
	db *sqlx.DB
}

// NewAlertRuleRepository creates a rule repository.
func NewAlertRuleRepository(db *sqlx.DB) *AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

type alertRuleRow struct {
	ID                 string     `db:"id"`
	Name               string     `db:"name"`
	Description        string     `db:"description"`
	Enabled            bool       `db:"enabled"`
	Condition          string     `db:"condition"`
	EvaluationInterval int64      `db:"evaluation_interval"`
	Severity           string     `db:"severity"`
	Frequency          int64      `db:"frequency"`
	Labels             string     `db:"labels"`
	Channels           string     `db:"channels"`
	Suppressions       string     `db:"suppressions"`
	Escalations        string     `db:"escalations"`
	LastTriggeredAt    *time.Time `db:"last_triggered_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func ruleToRow(rule *monitoring.AlertRule) (*alertRuleRow, error) {
	condition, err := marshalJSON(rule.Condition)
	if err != nil {
		return nil, err
	}
	labels, err := marshalJSON(rule.Labels)
	if err != nil {
		return nil, err
	}
	channels, err := marshalJSON(rule.Channels)
	if err != nil {
		return nil, err
	}
	suppressions, err := marshalJSON(rule.Suppressions)
	if err != nil {
		return nil, err
	}
	escalations, err := marshalJSON(rule.Escalations)
	if err != nil {
		return nil, err
	}
	return &alertRuleRow{
		ID:                 rule.ID,
		Name:               rule.Name,
		Description:        rule.Description,
		Enabled:            rule.Enabled,
		Condition:          condition,
		EvaluationInterval: int64(rule.EvaluationInterval),
		Severity:           string(rule.Severity),
		Frequency:          int64(rule.Frequency),
		Labels:             labels,
		Channels:           channels,
		Suppressions:       suppressions,
		Escalations:        escalations,
		LastTriggeredAt:    rule.LastTriggeredAt,
		CreatedAt:          rule.CreatedAt,
		UpdatedAt:          rule.UpdatedAt,
	}, nil
}

func rowToRule(row *alertRuleRow) (*monitoring.AlertRule, error) {
	rule := &monitoring.AlertRule{
		ID:                 row.ID,
		Name:               row.Name,
		Description:        row.Description,
		Enabled:            row.Enabled,
		EvaluationInterval: time.Duration(row.EvaluationInterval),
		Severity:           monitoring.AlertSeverity(row.Severity),
		Frequency:          time.Duration(row.Frequency),
		LastTriggeredAt:    row.LastTriggeredAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
	if err := unmarshalJSON(row.Condition, &rule.Condition); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Labels, &rule.Labels); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Channels, &rule.Channels); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Suppressions, &rule.Suppressions); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Escalations, &rule.Escalations); err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *AlertRuleRepository) CreateRule(ctx context.Context, rule *monitoring.AlertRule) error {
	row, err := ruleToRow(rule)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO alert_rules (id, name, description, enabled, condition, evaluation_interval,
			severity, frequency, labels, channels, suppressions, escalations,
			last_triggered_at, created_at, updated_at)
		VALUES (:id, :name, :description, :enabled, :condition, :evaluation_interval,
			:severity, :frequency, :labels, :channels, :suppressions, :escalations,
			:last_triggered_at, :created_at, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

func (r *AlertRuleRepository) GetRule(ctx context.Context, id string) (*monitoring.AlertRule, error) {
	var row alertRuleRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM alert_rules WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert rule %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}
	return rowToRule(&row)
}

func (r *AlertRuleRepository) ListRules(ctx context.Context) ([]*monitoring.AlertRule, error) {
	var rows []alertRuleRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM alert_rules ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	rules := make([]*monitoring.AlertRule, 0, len(rows))
	for i := range rows {
		rule, err := rowToRule(&rows[i])
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *AlertRuleRepository) UpdateRule(ctx context.Context, rule *monitoring.AlertRule) error {
	row, err := ruleToRow(rule)
	if err != nil {
		return err
	}
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE alert_rules SET name = :name, description = :description, enabled = :enabled,
			condition = :condition, evaluation_interval = :evaluation_interval,
			severity = :severity, frequency = :frequency, labels = :labels,
			channels = :channels, suppressions = :suppressions, escalations = :escalations,
			last_triggered_at = :last_triggered_at, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert rule %s not found", rule.ID)
	}
	return nil
}

func (r *AlertRuleRepository) DeleteRule(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}
	return nil
}

func (r *AlertRuleRepository) TouchLastTriggered(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alert_rules SET last_triggered_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to record last trigger: %w", err)
	}
	return nil
}
