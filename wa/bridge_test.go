package wa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{}

// newEventServer serves /events as a websocket that replays the given
// event payloads, and /send and /logout as recording HTTP endpoints.
func newEventServer(t *testing.T, events []string, sends *[]string, mu *sync.Mutex) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, ev := range events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(ev)); err != nil {
				return
			}
		}
		// Hold the stream open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*sends = append(*sends, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return httptest.NewServer(mux)
}

func TestBridgeEventStream(t *testing.T) {
	var sends []string
	var mu sync.Mutex
	srv := newEventServer(t, []string{
		`{"type":"qr","qr":"pair-me"}`,
		`{"type":"connection","connected":true,"user":{"name":"Ops","id":"852@s.whatsapp.net"}}`,
		`{"type":"message","from":"85211112222@s.whatsapp.net","body":"status"}`,
	}, &sends, &mu)
	defer srv.Close()

	b := NewBridge(srv.URL, zap.NewNop().Sugar())

	statusCh := make(chan bool, 4)
	msgCh := make(chan string, 4)
	b.OnStatusChange(func(connected bool, reason string) { statusCh <- connected })
	b.OnMessage(func(sender, body string) { msgCh <- sender + "|" + body })

	b.Start()
	defer b.Stop()

	select {
	case connected := <-statusCh:
		assert.True(t, connected)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection event")
	}

	select {
	case msg := <-msgCh:
		assert.Equal(t, "85211112222@s.whatsapp.net|status", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message event")
	}

	assert.True(t, b.IsConnected())
	require.NotNil(t, b.UserInfo())
	assert.Equal(t, "Ops", b.UserInfo().Name)
	assert.Empty(t, b.QR(), "QR clears once connected")
}

func TestBridgeSendText(t *testing.T) {
	var sends []string
	var mu sync.Mutex
	srv := newEventServer(t, nil, &sends, &mu)
	defer srv.Close()

	b := NewBridge(srv.URL, zap.NewNop().Sugar())
	err := b.SendText(context.Background(), "852@s.whatsapp.net", "hi")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, sends, 1)
}

func TestBridgeSendTextRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no session"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, zap.NewNop().Sugar())
	err := b.SendText(context.Background(), "852@s.whatsapp.net", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestBridgeLogoutResetsState(t *testing.T) {
	var sends []string
	var mu sync.Mutex
	srv := newEventServer(t, []string{
		`{"type":"connection","connected":true,"user":{"name":"Ops","id":"852"}}`,
	}, &sends, &mu)
	defer srv.Close()

	b := NewBridge(srv.URL, zap.NewNop().Sugar())
	statusCh := make(chan bool, 1)
	b.OnStatusChange(func(connected bool, reason string) { statusCh <- connected })
	b.Start()
	defer b.Stop()

	select {
	case <-statusCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection event")
	}

	require.NoError(t, b.Logout(context.Background()))
	assert.False(t, b.IsConnected())
	assert.Nil(t, b.UserInfo())
}
