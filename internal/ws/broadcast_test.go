package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pollevbot/backend/internal/bot"
	"github.com/pollevbot/backend/internal/mock"
	"github.com/pollevbot/backend/internal/observability"
	"github.com/pollevbot/backend/internal/session"
)

func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWSClientReceivesHelloAndLogs(t *testing.T) {
	ts, _ := newTestServer(t)
	info := startSession(t, ts)

	conn := dialWS(t, ts, info.Token)

	hello := readMessage(t, conn)
	require.Equal(t, MsgHello, hello.Type)

	var payload HelloPayload
	raw, _ := json.Marshal(hello.Payload)
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.Equal(t, info.Token, payload.Token)

	// The flush loop drains the session buffer and streams the batch.
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no logs message arrived")
		msg := readMessage(t, conn)
		if msg.Type != MsgLogs {
			continue
		}
		var logs LogsPayload
		raw, _ := json.Marshal(msg.Payload)
		require.NoError(t, json.Unmarshal(raw, &logs))
		require.Equal(t, info.Token, logs.Token)
		if len(logs.Events) > 0 {
			return
		}
	}
}

func TestWSUnknownTokenRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=deadbeef"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSClientToldWhenSessionRemoved(t *testing.T) {
	ts, registry := newTestServer(t)
	info := startSession(t, ts)
	conn := dialWS(t, ts, info.Token)

	hello := readMessage(t, conn)
	require.Equal(t, MsgHello, hello.Type)

	if h, ok := registry.Lookup(info.Token); ok {
		h.Runner.Stop()
	}
	registry.Remove(info.Token)

	deadline := time.Now().Add(3 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no gone message arrived")
		msg := readMessage(t, conn)
		if msg.Type == MsgGone {
			break
		}
	}
}

func TestBroadcasterLeavesUnwatchedBuffersAlone(t *testing.T) {
	registry := session.NewRegistry()
	b := NewBroadcaster(registry, 10*time.Millisecond, zerolog.Nop())
	defer b.Close()

	cfg, err := session.Config{
		Identity: "u@example.edu", Secret: "pw", Host: "cs101",
		ClosedWait: 10 * time.Millisecond, OpenWait: 5 * time.Millisecond,
		Lifetime: time.Minute, StopGrace: time.Second,
	}.Validate()
	require.NoError(t, err)

	h := bot.Start(cfg, &mock.Capability{}, bot.Options{
		Logger:  zerolog.Nop(),
		Metrics: observability.NewMetrics(),
	})
	registry.Register(h)
	defer func() {
		h.Runner.Stop()
		registry.Remove(h.Token)
	}()

	// No ws client is attached, so the flush loop must not steal events
	// from the REST drain path.
	time.Sleep(100 * time.Millisecond)
	require.Greater(t, h.Log.Len(), 0, "buffer was drained with no client attached")
}
