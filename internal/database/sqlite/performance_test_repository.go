package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
)

// PerformanceTestRepository implements monitoring.TestStore. Results are
// append-only; nothing here ever updates a recorded result row.
type PerformanceTestRepository struct {
	db *sqlx.DB
}

// NewPerformanceTestRepository creates a performance test repository.
func NewPerformanceTestRepository(db *sqlx.DB) *PerformanceTestRepository {
	return &PerformanceTestRepository{db: db}
}

type performanceTestRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Baseline  sql.NullString `db:"baseline"`
	CreatedAt time.Time      `db:"created_at"`
}

type testResultRow struct {
	ID              string         `db:"id"`
	TestID          string         `db:"test_id"`
	AvgResponseTime float64        `db:"avg_response_time"`
	Throughput      float64        `db:"throughput"`
	ErrorRate       float64        `db:"error_rate"`
	RecordedAt      time.Time      `db:"recorded_at"`
	Verdict         sql.NullString `db:"verdict"`
}

func rowToTest(row *performanceTestRow) (*monitoring.PerformanceTest, error) {
	test := &monitoring.PerformanceTest{
		ID:        row.ID,
		Name:      row.Name,
		CreatedAt: row.CreatedAt,
	}
	if row.Baseline.Valid {
		var baseline monitoring.TestBaseline
		if err := unmarshalJSON(row.Baseline.String, &baseline); err != nil {
			return nil, err
		}
		test.Baseline = &baseline
	}
	return test, nil
}

func rowToResult(row *testResultRow) (*monitoring.TestResult, error) {
	result := &monitoring.TestResult{
		ID:              row.ID,
		TestID:          row.TestID,
		AvgResponseTime: row.AvgResponseTime,
		Throughput:      row.Throughput,
		ErrorRate:       row.ErrorRate,
		RecordedAt:      row.RecordedAt,
	}
	if row.Verdict.Valid {
		var verdict monitoring.RegressionVerdict
		if err := unmarshalJSON(row.Verdict.String, &verdict); err != nil {
			return nil, err
		}
		result.Verdict = &verdict
	}
	return result, nil
}

func (r *PerformanceTestRepository) CreateTest(ctx context.Context, test *monitoring.PerformanceTest) error {
	var baseline interface{}
	if test.Baseline != nil {
		data, err := marshalJSON(test.Baseline)
		if err != nil {
			return err
		}
		baseline = data
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO performance_tests (id, name, baseline, created_at) VALUES (?, ?, ?, ?)`,
		test.ID, test.Name, baseline, test.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create performance test: %w", err)
	}
	return nil
}

func (r *PerformanceTestRepository) GetTest(ctx context.Context, id string) (*monitoring.PerformanceTest, error) {
	var row performanceTestRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM performance_tests WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("performance test %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get performance test: %w", err)
	}
	return rowToTest(&row)
}

func (r *PerformanceTestRepository) ListTests(ctx context.Context) ([]*monitoring.PerformanceTest, error) {
	var rows []performanceTestRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM performance_tests ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to list performance tests: %w", err)
	}
	tests := make([]*monitoring.PerformanceTest, 0, len(rows))
	for i := range rows {
		test, err := rowToTest(&rows[i])
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	return tests, nil
}

// SetBaseline replaces the test's baseline. Existing result verdicts are
// untouched: flags attach to results, never rewrite history.
func (r *PerformanceTestRepository) SetBaseline(ctx context.Context, testID string, baseline *monitoring.TestBaseline) error {
	data, err := marshalJSON(baseline)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE performance_tests SET baseline = ? WHERE id = ?`, data, testID)
	if err != nil {
		return fmt.Errorf("failed to set baseline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("performance test %s not found", testID)
	}
	return nil
}

func (r *PerformanceTestRepository) AddResult(ctx context.Context, result *monitoring.TestResult) error {
	var verdict interface{}
	if result.Verdict != nil {
		data, err := marshalJSON(result.Verdict)
		if err != nil {
			return err
		}
		verdict = data
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO test_results (id, test_id, avg_response_time, throughput, error_rate, recorded_at, verdict)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.TestID, result.AvgResponseTime, result.Throughput,
		result.ErrorRate, result.RecordedAt, verdict)
	if err != nil {
		return fmt.Errorf("failed to add test result: %w", err)
	}
	return nil
}

func (r *PerformanceTestRepository) ListResults(ctx context.Context, testID string) ([]*monitoring.TestResult, error) {
	var rows []testResultRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM test_results WHERE test_id = ? ORDER BY recorded_at`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list test results: %w", err)
	}
	results := make([]*monitoring.TestResult, 0, len(rows))
	for i := range rows {
		result, err := rowToResult(&rows[i])
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
