package channels

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Slack posts notifications to an incoming-webhook URL. The recipient is
// the target channel override, if any.
type Slack struct {
	base
	url    string
	client *http.Client
	retry  RetryPolicy
	logger *logrus.Logger
}

func newSlack(cfg Config, client *http.Client, retry RetryPolicy, logger *logrus.Logger) (*Slack, error) {
	url, err := requireSetting(cfg, "url")
	if err != nil {
		return nil, err
	}
	return &Slack{
		base:   base{id: cfg.ID, kind: "slack", enabled: cfg.Enabled},
		url:    url,
		client: client,
		retry:  retry,
		logger: logger,
	}, nil
}

func (s *Slack) Send(ctx context.Context, recipient, subject, body string) error {
	payload := map[string]interface{}{
		"text": fmt.Sprintf("*%s*\n%s", subject, body),
	}
	if recipient != "" {
		payload["channel"] = recipient
	}
	return postJSON(ctx, s.client, s.url, nil, payload, s.retry)
}
