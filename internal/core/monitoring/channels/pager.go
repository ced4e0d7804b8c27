package channels

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Pager triggers incidents through a paging provider's events API. The
// recipient is the routing/integration key when set, otherwise the
// configured api_key is used.
type Pager struct {
	base
	url    string
	apiKey string
	client *http.Client
	retry  RetryPolicy
	logger *logrus.Logger
}

func newPager(cfg Config, client *http.Client, retry RetryPolicy, logger *logrus.Logger) (*Pager, error) {
	url, err := requireSetting(cfg, "url")
	if err != nil {
		return nil, err
	}
	apiKey, err := requireSetting(cfg, "api_key")
	if err != nil {
		return nil, err
	}
	return &Pager{
		base:   base{id: cfg.ID, kind: "pager", enabled: cfg.Enabled},
		url:    url,
		apiKey: apiKey,
		client: client,
		retry:  retry,
		logger: logger,
	}, nil
}

func (p *Pager) Send(ctx context.Context, recipient, subject, body string) error {
	routingKey := recipient
	if routingKey == "" {
		routingKey = p.apiKey
	}
	payload := map[string]interface{}{
		"routing_key":  routingKey,
		"event_action": "trigger",
		"payload": map[string]string{
			"summary":  subject,
			"source":   "taskhub-monitoring",
			"severity": "critical",
			"details":  body,
		},
	}
	return postJSON(ctx, p.client, p.url, nil, payload, p.retry)
}
