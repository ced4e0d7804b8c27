package monitoring

import (
	"fmt"
	"math"
)

// Evaluator decides whether a sampled value satisfies a rule condition.
// It is pure: no clock, no store, no side effects.
type Evaluator struct {
	// epsilon widens eq/ne comparisons to |value-threshold| <= epsilon.
	// Zero keeps exact floating-point equality.
	epsilon float64
}

// NewEvaluator creates an evaluator. Pass 0 for exact equality semantics.
func NewEvaluator(epsilon float64) *Evaluator {
	return &Evaluator{epsilon: epsilon}
}

// Evaluate compares value against the condition's threshold. An unknown
// operator is a configuration error surfaced to the caller.
func (e *Evaluator) Evaluate(cond Condition, value float64) (bool, error) {
	switch cond.Operator {
	case OpGreaterThan:
		return value > cond.Threshold, nil
	case OpLessThan:
		return value < cond.Threshold, nil
	case OpGreaterOrEqual:
		return value >= cond.Threshold, nil
	case OpLessOrEqual:
		return value <= cond.Threshold, nil
	case OpEqual:
		return e.equal(value, cond.Threshold), nil
	case OpNotEqual:
		return !e.equal(value, cond.Threshold), nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", cond.Operator)
	}
}

func (e *Evaluator) equal(a, b float64) bool {
	if e.epsilon > 0 {
		return math.Abs(a-b) <= e.epsilon
	}
	return a == b
}
