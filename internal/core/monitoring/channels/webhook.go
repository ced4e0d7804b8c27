package channels

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Webhook posts alert notifications as JSON to a configured URL.
type Webhook struct {
	base
	url    string
	client *http.Client
	retry  RetryPolicy
	logger *logrus.Logger
}

func newWebhook(cfg Config, client *http.Client, retry RetryPolicy, logger *logrus.Logger) (*Webhook, error) {
	url, err := requireSetting(cfg, "url")
	if err != nil {
		return nil, err
	}
	return &Webhook{
		base:   base{id: cfg.ID, kind: "webhook", enabled: cfg.Enabled},
		url:    url,
		client: client,
		retry:  retry,
		logger: logger,
	}, nil
}

func (w *Webhook) Send(ctx context.Context, recipient, subject, body string) error {
	payload := map[string]interface{}{
		"recipient": recipient,
		"subject":   subject,
		"body":      body,
		"sent_at":   time.Now().UTC().Format(time.RFC3339),
	}
	return postJSON(ctx, w.client, w.url, nil, payload, w.retry)
}
