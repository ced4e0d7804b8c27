package monitoring

import "time"

// activeSuppression returns the suppression window currently silencing the
// rule, or nil. Suppression hides state transitions and notifications; the
// underlying evaluation is unaffected.
func activeSuppression(rule *AlertRule, now time.Time) *SuppressionWindow {
	for i := range rule.Suppressions {
		w := &rule.Suppressions[i]
		if now.Before(w.StartsAt) || !now.Before(w.EndsAt) {
			continue
		}
		if matchesLabels(w.Matchers, rule.Labels) {
			return w
		}
	}
	return nil
}

// matchesLabels reports whether every matcher holds against the rule's
// labels. A window with no matchers applies to all rules.
func matchesLabels(matchers []LabelMatcher, labels map[string]string) bool {
	for _, m := range matchers {
		got, ok := labels[m.Name]
		switch m.Kind {
		case MatchNotEqual:
			if ok && got == m.Value {
				return false
			}
		default: // MatchEqual
			if !ok || got != m.Value {
				return false
			}
		}
	}
	return true
}
