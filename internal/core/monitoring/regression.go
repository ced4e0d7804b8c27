package monitoring

// Metric names reported in regression violations.
const (
	RegressionMetricResponseTime = "response_time"
	RegressionMetricThroughput   = "throughput"
	RegressionMetricErrorRate    = "error_rate"
)

// RegressionThresholds bound how much a result may degrade before it
// counts as a regression. ResponseTime and Throughput are relative
// fractions; ErrorRate is absolute percentage points.
type RegressionThresholds struct {
	ResponseTime float64 `json:"response_time"`
	Throughput   float64 `json:"throughput"`
	ErrorRate    float64 `json:"error_rate"`
}

// DefaultRegressionThresholds returns the stock 20%/20%/1pp thresholds.
func DefaultRegressionThresholds() RegressionThresholds {
	return RegressionThresholds{ResponseTime: 0.20, Throughput: 0.20, ErrorRate: 1.0}
}

// RegressionDetector compares completed performance-test results against
// their recorded baseline. Pure comparison logic, no side effects.
type RegressionDetector struct {
	thresholds RegressionThresholds
}

// NewRegressionDetector creates a detector with the given thresholds.
func NewRegressionDetector(thresholds RegressionThresholds) *RegressionDetector {
	return &RegressionDetector{thresholds: thresholds}
}

// Compare produces the verdict for one result. A result with no baseline
// can never regress; the verdict says so explicitly via BaselineMissing.
func (d *RegressionDetector) Compare(baseline *TestBaseline, result *TestResult) RegressionVerdict {
	if baseline == nil {
		return RegressionVerdict{Regression: false, BaselineMissing: true}
	}

	var violations []MetricViolation

	if baseline.ResponseTime > 0 {
		delta := (result.AvgResponseTime - baseline.ResponseTime) / baseline.ResponseTime
		if delta > d.thresholds.ResponseTime {
			violations = append(violations, MetricViolation{
				Metric:   RegressionMetricResponseTime,
				Baseline: baseline.ResponseTime,
				Observed: result.AvgResponseTime,
				Delta:    delta,
			})
		}
	}

	if baseline.Throughput > 0 {
		delta := (baseline.Throughput - result.Throughput) / baseline.Throughput
		if delta > d.thresholds.Throughput {
			violations = append(violations, MetricViolation{
				Metric:   RegressionMetricThroughput,
				Baseline: baseline.Throughput,
				Observed: result.Throughput,
				Delta:    delta,
			})
		}
	}

	if delta := result.ErrorRate - baseline.ErrorRate; delta > d.thresholds.ErrorRate {
		violations = append(violations, MetricViolation{
			Metric:   RegressionMetricErrorRate,
			Baseline: baseline.ErrorRate,
			Observed: result.ErrorRate,
			Delta:    delta,
		})
	}

	return RegressionVerdict{Regression: len(violations) > 0, Violations: violations}
}
