// Package mailer sends alert email over SMTP. Alerts are best effort:
// a delivery failure is logged and never propagated to the caller that
// observed the triggering event.
package mailer

import (
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/klchiu/waops/config"
	"github.com/klchiu/waops/errors"
)

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Alerter delivers operational alert email. The email settings are
// mutable at runtime through the settings endpoints, so access goes
// through a lock.
type Alerter struct {
	log  *zap.SugaredLogger
	send sendFunc

	mu  sync.RWMutex
	cfg config.EmailConfig
}

// New creates an alerter with the given initial email settings.
func New(cfg config.EmailConfig, log *zap.SugaredLogger) *Alerter {
	return &Alerter{
		log:  log,
		send: smtp.SendMail,
		cfg:  cfg,
	}
}

// SetConfig replaces the email settings for subsequent alerts.
func (a *Alerter) SetConfig(cfg config.EmailConfig) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// Config returns a copy of the current email settings.
func (a *Alerter) Config() config.EmailConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// AlertDisconnect sends a session-loss alert in the background. A
// disabled or incomplete email configuration silently drops the alert.
func (a *Alerter) AlertDisconnect(reason string) {
	cfg := a.Config()
	if !cfg.Enabled {
		return
	}

	body := fmt.Sprintf(
		"The messaging session disconnected at %s.\n\nReason: %s\n\nScheduled tasks and automated replies are paused until the session reconnects.",
		time.Now().Format(time.RFC1123), reason)

	go func() {
		if err := a.deliver(cfg, "waops alert: messaging session disconnected", body); err != nil {
			a.log.Errorw("Failed to send disconnect alert", "error", err)
			return
		}
		a.log.Infow("Disconnect alert sent", "to", cfg.Address)
	}()
}

// SendTest delivers a test message synchronously so the settings UI can
// report delivery problems directly.
func (a *Alerter) SendTest() error {
	cfg := a.Config()
	body := fmt.Sprintf("This is a test message from waops, sent at %s.\n\nIf you received this, alert email is configured correctly.",
		time.Now().Format(time.RFC1123))
	return a.deliver(cfg, "waops test email", body)
}

func (a *Alerter) deliver(cfg config.EmailConfig, subject, body string) error {
	if cfg.Address == "" {
		return errors.New("no alert address configured")
	}
	if cfg.SMTP.Host == "" {
		return errors.New("no SMTP host configured")
	}

	from := cfg.SMTP.Username
	if from == "" {
		from = cfg.Address
	}

	var auth smtp.Auth
	if cfg.SMTP.Username != "" {
		auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}

	addr := net.JoinHostPort(cfg.SMTP.Host, strconv.Itoa(cfg.SMTP.Port))
	msg := buildMessage(from, cfg.Address, subject, body)

	if err := a.send(addr, auth, from, []string{cfg.Address}, msg); err != nil {
		return errors.Wrap(err, "smtp delivery failed")
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
