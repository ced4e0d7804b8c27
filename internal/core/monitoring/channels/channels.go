// Package channels provides the notification transports the dispatcher
// fans out to: webhook, Slack, email, SMS gateway and pager. Every sender
// bounds its work with the caller's context and absorbs transient
// transport errors with a small exponential-backoff retry.
package channels

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
)

// Config declares one channel instance. Settings keys depend on the type:
// webhook/slack need "url", email needs "smtp_addr"/"from", sms and pager
// need "url" and "api_key".
type Config struct {
	ID       string
	Type     string
	Enabled  bool
	Settings map[string]string
}

// RetryPolicy bounds send retries inside a channel.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy matches the engine's stock notification retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: 5 * time.Second, MaxDelay: time.Minute}
}

// Build constructs channels from configuration. Unknown types are an
// error: a typo'd channel must fail loudly at startup, not at dispatch.
func Build(configs []Config, retry RetryPolicy, logger *logrus.Logger) ([]monitoring.Channel, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	out := make([]monitoring.Channel, 0, len(configs))
	for _, cfg := range configs {
		var (
			ch  monitoring.Channel
			err error
		)
		switch cfg.Type {
		case "webhook":
			ch, err = newWebhook(cfg, httpClient, retry, logger)
		case "slack":
			ch, err = newSlack(cfg, httpClient, retry, logger)
		case "email":
			ch, err = newEmail(cfg, logger)
		case "sms":
			ch, err = newSMS(cfg, httpClient, retry, logger)
		case "pager":
			ch, err = newPager(cfg, httpClient, retry, logger)
		default:
			err = fmt.Errorf("unknown channel type %q", cfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", cfg.ID, err)
		}
		out = append(out, ch)
	}
	return out, nil
}

type base struct {
	id      string
	kind    string
	enabled bool
}

func (b base) ID() string    { return b.id }
func (b base) Type() string  { return b.kind }
func (b base) Enabled() bool { return b.enabled }

func requireSetting(cfg Config, key string) (string, error) {
	v, ok := cfg.Settings[key]
	if !ok || v == "" {
		return "", fmt.Errorf("missing required setting %q", key)
	}
	return v, nil
}
