package channels

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"
)

// Email delivers notifications over SMTP. Auth is optional; when
// "username" is set, plain auth against the SMTP host is used.
type Email struct {
	base
	addr   string
	from   string
	auth   smtp.Auth
	logger *logrus.Logger

	// sendMail is swappable for tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func newEmail(cfg Config, logger *logrus.Logger) (*Email, error) {
	addr, err := requireSetting(cfg, "smtp_addr")
	if err != nil {
		return nil, err
	}
	from, err := requireSetting(cfg, "from")
	if err != nil {
		return nil, err
	}

	var auth smtp.Auth
	if user := cfg.Settings["username"]; user != "" {
		auth = smtp.PlainAuth("", user, cfg.Settings["password"], cfg.Settings["host"])
	}

	return &Email{
		base:     base{id: cfg.ID, kind: "email", enabled: cfg.Enabled},
		addr:     addr,
		from:     from,
		auth:     auth,
		logger:   logger,
		sendMail: smtp.SendMail,
	}, nil
}

func (e *Email) Send(ctx context.Context, recipient, subject, body string) error {
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.from, recipient, subject, body))

	// smtp.SendMail has no context support; run it on the side so the
	// dispatcher's timeout still bounds the wait.
	done := make(chan error, 1)
	go func() {
		done <- e.sendMail(e.addr, e.auth, e.from, []string{recipient}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
