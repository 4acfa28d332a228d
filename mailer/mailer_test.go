package mailer

import (
	"net/smtp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klchiu/waops/config"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

// fakeTransport records sends and signals a channel so async alerts can
// be waited on without sleeping.
type fakeTransport struct {
	mu    sync.Mutex
	sent  []capturedMail
	ready chan struct{}
	err   error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ready: make(chan struct{}, 8)}
}

func (f *fakeTransport) send(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
	f.mu.Unlock()
	f.ready <- struct{}{}
	return f.err
}

func (f *fakeTransport) wait(t *testing.T) capturedMail {
	t.Helper()
	select {
	case <-f.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("no mail sent")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func enabledConfig() config.EmailConfig {
	return config.EmailConfig{
		Enabled: true,
		Address: "ops@example.com",
		SMTP: config.SMTPConfig{
			Host:     "smtp.example.com",
			Port:     587,
			Username: "alerts@example.com",
			Password: "secret",
		},
	}
}

func TestAlertDisconnectSendsMail(t *testing.T) {
	ft := newFakeTransport()
	a := New(enabledConfig(), zap.NewNop().Sugar())
	a.send = ft.send

	a.AlertDisconnect("connection closed")

	mail := ft.wait(t)
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, "alerts@example.com", mail.from)
	assert.Equal(t, []string{"ops@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: waops alert: messaging session disconnected")
	assert.Contains(t, mail.msg, "connection closed")
}

func TestAlertDisconnectDisabled(t *testing.T) {
	ft := newFakeTransport()
	cfg := enabledConfig()
	cfg.Enabled = false
	a := New(cfg, zap.NewNop().Sugar())
	a.send = ft.send

	a.AlertDisconnect("connection closed")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ft.count())
}

func TestSendTest(t *testing.T) {
	ft := newFakeTransport()
	a := New(enabledConfig(), zap.NewNop().Sugar())
	a.send = ft.send

	require.NoError(t, a.SendTest())

	mail := ft.wait(t)
	assert.Contains(t, mail.msg, "Subject: waops test email")
	assert.Contains(t, mail.msg, "To: ops@example.com")
}

func TestSendTestMissingAddress(t *testing.T) {
	cfg := enabledConfig()
	cfg.Address = ""
	a := New(cfg, zap.NewNop().Sugar())

	err := a.SendTest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no alert address")
}

func TestSendTestMissingHost(t *testing.T) {
	cfg := enabledConfig()
	cfg.SMTP.Host = ""
	a := New(cfg, zap.NewNop().Sugar())

	err := a.SendTest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SMTP host")
}

func TestSetConfigReplacesSettings(t *testing.T) {
	ft := newFakeTransport()
	a := New(config.EmailConfig{}, zap.NewNop().Sugar())
	a.send = ft.send

	a.SetConfig(enabledConfig())
	assert.True(t, a.Config().Enabled)

	require.NoError(t, a.SendTest())
	mail := ft.wait(t)
	assert.Equal(t, []string{"ops@example.com"}, mail.to)
}

func TestFallbackFromAddress(t *testing.T) {
	ft := newFakeTransport()
	cfg := enabledConfig()
	cfg.SMTP.Username = ""
	cfg.SMTP.Password = ""
	a := New(cfg, zap.NewNop().Sugar())
	a.send = ft.send

	require.NoError(t, a.SendTest())
	mail := ft.wait(t)
	assert.Equal(t, "ops@example.com", mail.from)
}
