package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialHub(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPayload(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	return payload
}

func TestHubSendsSnapshotOnConnect(t *testing.T) {
	hub := NewHub(func() interface{} {
		return map[string]interface{}{"type": "status", "connected": true}
	}, zap.NewNop().Sugar())
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()

	conn := dialHub(t, ts)
	payload := readPayload(t, conn)
	assert.Equal(t, "status", payload["type"])
	assert.Equal(t, true, payload["connected"])
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(func() interface{} {
		return map[string]interface{}{"type": "status"}
	}, zap.NewNop().Sugar())
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()

	a := dialHub(t, ts)
	b := dialHub(t, ts)
	readPayload(t, a)
	readPayload(t, b)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(map[string]interface{}{"type": "status", "connected": false})

	for _, conn := range []*websocket.Conn{a, b} {
		payload := readPayload(t, conn)
		assert.Equal(t, false, payload["connected"])
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(func() interface{} { return map[string]string{"type": "status"} }, zap.NewNop().Sugar())
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()

	conn := dialHub(t, ts)
	readPayload(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(func() interface{} { return map[string]string{"type": "status"} }, zap.NewNop().Sugar())
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()

	conn := dialHub(t, ts)
	readPayload(t, conn)

	hub.Close()
	assert.Zero(t, hub.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// A connect after shutdown is refused immediately.
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		late.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, readErr := late.ReadMessage()
		assert.Error(t, readErr)
		late.Close()
	}
	assert.Zero(t, hub.ClientCount())
}
