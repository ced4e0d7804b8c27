package channels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestBuildChannels(t *testing.T) {
	configs := []Config{
		{ID: "hook", Type: "webhook", Enabled: true, Settings: map[string]string{"url": "https://example.com/h"}},
		{ID: "chat", Type: "slack", Enabled: true, Settings: map[string]string{"url": "https://hooks.slack.com/x"}},
		{ID: "mail", Type: "email", Enabled: true, Settings: map[string]string{"smtp_addr": "smtp.example.com:587", "from": "alerts@example.com"}},
		{ID: "text", Type: "sms", Enabled: false, Settings: map[string]string{"url": "https://sms.example.com", "api_key": "k"}},
		{ID: "page", Type: "pager", Enabled: true, Settings: map[string]string{"url": "https://pager.example.com", "api_key": "k"}},
	}

	built, err := Build(configs, DefaultRetryPolicy(), testLogger())
	require.NoError(t, err)
	require.Len(t, built, 5)

	assert.Equal(t, "hook", built[0].ID())
	assert.Equal(t, "webhook", built[0].Type())
	assert.True(t, built[0].Enabled())
	assert.False(t, built[3].Enabled())
}

func TestBuildUnknownType(t *testing.T) {
	_, err := Build([]Config{{ID: "x", Type: "carrier-pigeon"}}, DefaultRetryPolicy(), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown channel type")
}

func TestBuildMissingSetting(t *testing.T) {
	_, err := Build([]Config{{ID: "x", Type: "webhook", Settings: map[string]string{}}},
		DefaultRetryPolicy(), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestWebhookSend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook, err := newWebhook(Config{
		ID: "hook", Type: "webhook", Enabled: true,
		Settings: map[string]string{"url": srv.URL},
	}, srv.Client(), fastRetry(), testLogger())
	require.NoError(t, err)

	require.NoError(t, hook.Send(context.Background(), "team", "[high] CPU", "details"))
	assert.Equal(t, "team", got["recipient"])
	assert.Equal(t, "[high] CPU", got["subject"])
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook, err := newWebhook(Config{
		ID: "hook", Type: "webhook", Enabled: true,
		Settings: map[string]string{"url": srv.URL},
	}, srv.Client(), fastRetry(), testLogger())
	require.NoError(t, err)

	require.NoError(t, hook.Send(context.Background(), "team", "s", "b"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	hook, err := newWebhook(Config{
		ID: "hook", Type: "webhook", Enabled: true,
		Settings: map[string]string{"url": srv.URL},
	}, srv.Client(), fastRetry(), testLogger())
	require.NoError(t, err)

	err = hook.Send(context.Background(), "team", "s", "b")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestSMSTruncatesToOneSegment(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sms, err := newSMS(Config{
		ID: "text", Type: "sms", Enabled: true,
		Settings: map[string]string{"url": srv.URL, "api_key": "secret"},
	}, srv.Client(), fastRetry(), testLogger())
	require.NoError(t, err)

	long := strings.Repeat("x", 400)
	require.NoError(t, sms.Send(context.Background(), "+15551234567", long, "ignored body"))
	assert.Equal(t, "+15551234567", got["to"])
	assert.Len(t, got["message"], 160)
}

func TestEmailSend(t *testing.T) {
	mail, err := newEmail(Config{
		ID: "mail", Type: "email", Enabled: true,
		Settings: map[string]string{"smtp_addr": "smtp.example.com:587", "from": "alerts@example.com"},
	}, testLogger())
	require.NoError(t, err)

	var gotTo []string
	var gotMsg string
	mail.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "smtp.example.com:587", addr)
		assert.Equal(t, "alerts@example.com", from)
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	require.NoError(t, mail.Send(context.Background(), "oncall@example.com", "[high] CPU", "details"))
	assert.Equal(t, []string{"oncall@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [high] CPU")
	assert.Contains(t, gotMsg, "details")
}

func TestEmailSendRespectsContext(t *testing.T) {
	mail, err := newEmail(Config{
		ID: "mail", Type: "email", Enabled: true,
		Settings: map[string]string{"smtp_addr": "smtp.example.com:587", "from": "alerts@example.com"},
	}, testLogger())
	require.NoError(t, err)

	release := make(chan struct{})
	mail.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mail.Send(ctx, "oncall@example.com", "s", "b"), context.Canceled)
}

func TestPagerPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pager, err := newPager(Config{
		ID: "page", Type: "pager", Enabled: true,
		Settings: map[string]string{"url": srv.URL, "api_key": "routing-key"},
	}, srv.Client(), fastRetry(), testLogger())
	require.NoError(t, err)

	require.NoError(t, pager.Send(context.Background(), "", "[critical] Disk", "details"))
	assert.Equal(t, "routing-key", got["routing_key"], "empty recipient falls back to api_key")
	assert.Equal(t, "trigger", got["event_action"])
}
