package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
)

// AlertRepository implements monitoring.AlertStore.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates an alert repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

type alertRow struct {
	ID               string     `db:"id"`
	RuleID           string     `db:"rule_id"`
	RuleName         string     `db:"rule_name"`
	Severity         string     `db:"severity"`
	Status           string     `db:"status"`
	Value            float64    `db:"value"`
	EscalationLevel  int        `db:"escalation_level"`
	FirstTriggeredAt time.Time  `db:"first_triggered_at"`
	LastSeenAt       time.Time  `db:"last_seen_at"`
	AcknowledgedAt   *time.Time `db:"acknowledged_at"`
	ResolvedAt       *time.Time `db:"resolved_at"`
	History          string     `db:"history"`
}

func alertToRow(alert *monitoring.Alert) (*alertRow, error) {
	history, err := marshalJSON(alert.History)
	if err != nil {
		return nil, err
	}
	return &alertRow{
		ID:               alert.ID,
		RuleID:           alert.RuleID,
		RuleName:         alert.RuleName,
		Severity:         string(alert.Severity),
		Status:           string(alert.Status),
		Value:            alert.Value,
		EscalationLevel:  alert.EscalationLevel,
		FirstTriggeredAt: alert.FirstTriggeredAt,
		LastSeenAt:       alert.LastSeenAt,
		AcknowledgedAt:   alert.AcknowledgedAt,
		ResolvedAt:       alert.ResolvedAt,
		History:          history,
	}, nil
}

func rowToAlert(row *alertRow) (*monitoring.Alert, error) {
	alert := &monitoring.Alert{
		ID:               row.ID,
		RuleID:           row.RuleID,
		RuleName:         row.RuleName,
		Severity:         monitoring.AlertSeverity(row.Severity),
		Status:           monitoring.AlertStatus(row.Status),
		Value:            row.Value,
		EscalationLevel:  row.EscalationLevel,
		FirstTriggeredAt: row.FirstTriggeredAt,
		LastSeenAt:       row.LastSeenAt,
		AcknowledgedAt:   row.AcknowledgedAt,
		ResolvedAt:       row.ResolvedAt,
	}
	if err := unmarshalJSON(row.History, &alert.History); err != nil {
		return nil, err
	}
	return alert, nil
}

// SaveAlert upserts the alert, keyed by id.
func (r *AlertRepository) SaveAlert(ctx context.Context, alert *monitoring.Alert) error {
	row, err := alertToRow(alert)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO alerts (id, rule_id, rule_name, severity, status, value, escalation_level,
			first_triggered_at, last_seen_at, acknowledged_at, resolved_at, history)
		VALUES (:id, :rule_id, :rule_name, :severity, :status, :value, :escalation_level,
			:first_triggered_at, :last_seen_at, :acknowledged_at, :resolved_at, :history)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			value = excluded.value,
			escalation_level = excluded.escalation_level,
			last_seen_at = excluded.last_seen_at,
			acknowledged_at = excluded.acknowledged_at,
			resolved_at = excluded.resolved_at,
			history = excluded.history`, row)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) GetAlert(ctx context.Context, id string) (*monitoring.Alert, error) {
	var row alertRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM alerts WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return rowToAlert(&row)
}

// ListAlerts returns alerts filtered by status; an empty status lists all.
func (r *AlertRepository) ListAlerts(ctx context.Context, status monitoring.AlertStatus) ([]*monitoring.Alert, error) {
	var (
		rows []alertRow
		err  error
	)
	if status == "" {
		err = r.db.SelectContext(ctx, &rows, `SELECT * FROM alerts ORDER BY first_triggered_at DESC`)
	} else {
		err = r.db.SelectContext(ctx, &rows,
			`SELECT * FROM alerts WHERE status = ? ORDER BY first_triggered_at DESC`, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	alerts := make([]*monitoring.Alert, 0, len(rows))
	for i := range rows {
		alert, err := rowToAlert(&rows[i])
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (r *AlertRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE status = ? AND resolved_at IS NOT NULL AND resolved_at < ?`,
		string(monitoring.StatusResolved), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved alerts: %w", err)
	}
	return res.RowsAffected()
}
