package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
)

// bootstrapRules loads declarative rules from a YAML file and inserts the
// ones not already persisted, matched by name. Existing rules win: operators
// edit live rules through the API and a restart must not clobber those edits.
func bootstrapRules(ctx context.Context, path string, defaultInterval time.Duration, rules monitoring.RuleStore, log *logrus.Logger) error {
	loaded, err := monitoring.LoadRulesFile(path)
	if err != nil {
		return err
	}

	existing, err := rules.ListRules(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.Name] = true
	}

	added := 0
	for _, rule := range loaded {
		if known[rule.Name] {
			continue
		}
		if rule.EvaluationInterval == 0 {
			rule.EvaluationInterval = defaultInterval
		}
		if err := rule.Validate(); err != nil {
			log.WithError(err).Warnf("Skipping invalid bootstrap rule %q", rule.Name)
			continue
		}
		rule.ID = uuid.New().String()
		now := time.Now()
		rule.CreatedAt = now
		rule.UpdatedAt = now
		if err := rules.CreateRule(ctx, rule); err != nil {
			return err
		}
		added++
	}

	if added > 0 {
		log.Infof("Bootstrapped %d rules from %s", added, path)
	}
	return nil
}
