// Package mailer delivers failed-payment alerts over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"epcbooks.org/internal/obs"
)

// SMTP sends alert mail through a plain-auth SMTP relay.
type SMTP struct {
	addr string
	auth smtp.Auth
	from string
	to   string
}

// NewSMTP configures the alert mailer. user/pass may be empty for relays
// that do not require auth.
func NewSMTP(host string, port int, user, pass, from, to string) (*SMTP, error) {
	if strings.TrimSpace(host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return nil, errors.New("alert from/to addresses are required")
	}
	m := &SMTP{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		to:   to,
	}
	if user != "" {
		m.auth = smtp.PlainAuth("", user, pass, host)
	}
	return m, nil
}

// Alert sends the repeated-failure notification. Implements monitor.Alerter.
func (m *SMTP) Alert(ctx context.Context, identity string, attempts int) error {
	body := fmt.Sprintf(
		"Subject: Payment Alert: Multiple Failed Attempts\r\n"+
			"From: %s\r\nTo: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n"+
			"Multiple failed payment attempts detected.\r\n\r\n"+
			"Customer: %s\r\nFailed attempts: %d\r\nTime: %s\r\n",
		m.from, m.to, identity, attempts, time.Now().UTC().Format(time.RFC3339),
	)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, m.auth, m.from, []string{m.to}, []byte(body))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogOnly is the fallback alerter used when no SMTP relay is configured.
// It records the alert in the service log and nothing else.
type LogOnly struct{}

// Alert implements monitor.Alerter.
func (LogOnly) Alert(ctx context.Context, identity string, attempts int) error {
	obs.Log("warn", "payment_alert", map[string]any{
		"identity": identity,
		"attempts": attempts,
	})
	return nil
}
