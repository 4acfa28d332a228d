package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/klchiu/waops/errors"
)

const (
	// Time allowed to write a message to the sidecar
	sendTimeout = 15 * time.Second

	// Delay before re-dialing the event stream after a drop
	redialDelay = 3 * time.Second
)

// Bridge is a Gateway implementation backed by the protocol sidecar.
// Text sends go over HTTP; connection, QR, and inbound-message events
// arrive on a websocket stream that the bridge keeps re-dialing for the
// life of the process.
type Bridge struct {
	baseURL string
	wsURL   string
	httpc   *http.Client
	log     *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	connected bool
	user      *UserInfo
	qr        string

	statusHandlers  []StatusHandler
	messageHandlers []MessageHandler
}

// bridgeEvent is the wire format of the sidecar event stream.
type bridgeEvent struct {
	Type      string    `json:"type"`
	Connected bool      `json:"connected"`
	Reason    string    `json:"reason,omitempty"`
	User      *UserInfo `json:"user,omitempty"`
	QR        string    `json:"qr,omitempty"`
	From      string    `json:"from,omitempty"`
	Body      string    `json:"body,omitempty"`
}

// NewBridge creates a bridge client for the sidecar at baseURL.
func NewBridge(baseURL string, log *zap.SugaredLogger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())

	wsURL := strings.TrimSuffix(baseURL, "/")
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)

	return &Bridge{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		wsURL:   wsURL + "/events",
		httpc:   &http.Client{Timeout: sendTimeout},
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnStatusChange registers a connection open/closed callback.
// Register handlers before Start.
func (b *Bridge) OnStatusChange(h StatusHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusHandlers = append(b.statusHandlers, h)
}

// OnMessage registers an inbound-message callback.
// Register handlers before Start.
func (b *Bridge) OnMessage(h MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messageHandlers = append(b.messageHandlers, h)
}

// Start begins consuming the sidecar event stream.
func (b *Bridge) Start() {
	b.wg.Add(1)
	go b.readLoop()
	b.log.Infow("Session bridge started", "events", b.wsURL)
}

// Stop tears down the event stream and waits for the read loop to exit.
func (b *Bridge) Stop() {
	b.cancel()
	b.wg.Wait()
	b.log.Infow("Session bridge stopped")
}

// IsConnected reports whether the messaging session is open.
func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// UserInfo returns the paired account, or nil while disconnected.
func (b *Bridge) UserInfo() *UserInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.user
}

// QR returns the pending pairing code, or "" when paired.
func (b *Bridge) QR() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.qr
}

// SendText delivers a plain-text message to the given address.
func (b *Bridge) SendText(ctx context.Context, jid, text string) error {
	payload, err := json.Marshal(map[string]string{"jid": jid, "text": text})
	if err != nil {
		return errors.Wrap(err, "failed to encode send payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build send request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("send rejected by session bridge: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// Logout asks the sidecar to drop the session and clear credentials,
// then resets local state wholesale.
func (b *Bridge) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/logout", nil)
	if err != nil {
		return errors.Wrap(err, "failed to build logout request")
	}

	resp, err := b.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "logout request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("logout rejected by session bridge: %s", resp.Status)
	}

	b.Reset()
	return nil
}

// Reset clears all session-derived state (connected flag, user, QR).
func (b *Bridge) Reset() {
	b.mu.Lock()
	b.connected = false
	b.user = nil
	b.qr = ""
	b.mu.Unlock()
}

// readLoop dials the event stream and keeps it alive, re-dialing after
// drops until Stop is called.
func (b *Bridge) readLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(b.ctx, b.wsURL, nil)
		if err != nil {
			b.log.Warnw("Session bridge dial failed", "url", b.wsURL, "error", err)
			b.markDisconnected("bridge unreachable")
			if !b.sleep(redialDelay) {
				return
			}
			continue
		}

		b.consume(conn)
		conn.Close()

		b.markDisconnected("event stream closed")
		if !b.sleep(redialDelay) {
			return
		}
	}
}

// consume reads events until the connection drops or the bridge stops.
func (b *Bridge) consume(conn *websocket.Conn) {
	// Unblock ReadMessage when Stop is called
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-b.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if b.ctx.Err() == nil {
				b.log.Warnw("Session bridge read failed", "error", err)
			}
			return
		}

		var ev bridgeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			b.log.Warnw("Session bridge sent malformed event", "error", err)
			continue
		}
		b.handleEvent(ev)
	}
}

func (b *Bridge) handleEvent(ev bridgeEvent) {
	switch ev.Type {
	case "connection":
		b.mu.Lock()
		b.connected = ev.Connected
		if ev.Connected {
			b.user = ev.User
			b.qr = ""
		} else {
			b.user = nil
		}
		handlers := append([]StatusHandler(nil), b.statusHandlers...)
		b.mu.Unlock()

		b.log.Infow("Session connection update", "connected", ev.Connected, "reason", ev.Reason)
		for _, h := range handlers {
			h(ev.Connected, ev.Reason)
		}

	case "qr":
		b.mu.Lock()
		b.qr = ev.QR
		b.connected = false
		b.mu.Unlock()
		b.log.Infow("Session pairing code received")

	case "message":
		b.mu.RLock()
		handlers := append([]MessageHandler(nil), b.messageHandlers...)
		b.mu.RUnlock()

		for _, h := range handlers {
			h(ev.From, ev.Body)
		}

	default:
		b.log.Debugw("Ignoring unknown bridge event", "type", ev.Type)
	}
}

// markDisconnected flips the connected flag off and notifies handlers
// if the session was previously open.
func (b *Bridge) markDisconnected(reason string) {
	b.mu.Lock()
	wasConnected := b.connected
	b.connected = false
	b.user = nil
	handlers := append([]StatusHandler(nil), b.statusHandlers...)
	b.mu.Unlock()

	if wasConnected {
		for _, h := range handlers {
			h(false, reason)
		}
	}
}

// sleep waits for d or until Stop; returns false when stopping.
func (b *Bridge) sleep(d time.Duration) bool {
	select {
	case <-b.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

var _ Gateway = (*Bridge)(nil)

// String implements fmt.Stringer for diagnostics.
func (b *Bridge) String() string {
	return fmt.Sprintf("Bridge(%s)", b.baseURL)
}
