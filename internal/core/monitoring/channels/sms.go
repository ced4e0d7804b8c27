package channels

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

// SMS posts notifications to an HTTP SMS gateway. The body is truncated to
// a single segment; pagers and SMS carry the subject line only.
type SMS struct {
	base
	url    string
	apiKey string
	client *http.Client
	retry  RetryPolicy
	logger *logrus.Logger
}

func newSMS(cfg Config, client *http.Client, retry RetryPolicy, logger *logrus.Logger) (*SMS, error) {
	url, err := requireSetting(cfg, "url")
	if err != nil {
		return nil, err
	}
	apiKey, err := requireSetting(cfg, "api_key")
	if err != nil {
		return nil, err
	}
	return &SMS{
		base:   base{id: cfg.ID, kind: "sms", enabled: cfg.Enabled},
		url:    url,
		apiKey: apiKey,
		client: client,
		retry:  retry,
		logger: logger,
	}, nil
}

const smsSegmentLimit = 160

func (s *SMS) Send(ctx context.Context, recipient, subject, body string) error {
	text := subject
	if len(text) > smsSegmentLimit {
		text = text[:smsSegmentLimit]
	}
	payload := map[string]string{"to": recipient, "message": text}
	headers := map[string]string{"Authorization": "Bearer " + s.apiKey}
	return postJSON(ctx, s.client, s.url, headers, payload, s.retry)
}
