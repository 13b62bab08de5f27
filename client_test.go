package relay

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
)

// test platform: a snapshot endpoint plus a websocket stream endpoint
type testPlatform struct {
	server        *httptest.Server
	snapshotCount atomic.Int64
	conns         chan *websocket.Conn
}

func newTestPlatform(t *testing.T) *testPlatform {
	platform := &testPlatform{
		conns: make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/rtm.start", func(w http.ResponseWriter, r *http.Request) {
		platform.snapshotCount.Add(1)
		wsUrl := strings.Replace(platform.server.URL, "http://", "ws://", 1) + "/stream"
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"ok": true,
			"url": "%s",
			"team": {"id": "T1", "name": "acme"},
			"self": {"id": "U0", "name": "me"},
			"users": [{"id": "U0"}, {"id": "U1"}],
			"channels": [{"id": "C1", "name": "general"}]
		}`, wsUrl)
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade error: %s", err)
			return
		}
		platform.conns <- conn
	})

	platform.server = httptest.NewServer(mux)
	return platform
}

func (self *testPlatform) Close() {
	self.server.Close()
}

func (self *testPlatform) nextConn(t *testing.T) *websocket.Conn {
	select {
	case conn := <-self.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for stream connection")
		return nil
	}
}

func waitFor(t *testing.T, description string, condition func() bool) {
	timeout := time.After(5 * time.Second)
	for {
		if condition() {
			return
		}
		select {
		case <-timeout:
			t.Fatalf("timeout waiting for %s", description)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestConnectLifecycle(t *testing.T) {
	platform := newTestPlatform(t)
	defer platform.Close()

	client, err := NewClient(platform.server.URL, "xoxp-test")
	assert.Equal(t, nil, err)
	defer client.Close()

	notifications := make(chan *Notification, 64)
	client.AddNotificationCallback(func(notification *Notification) {
		notifications <- notification
	})

	settings := DefaultConnectSettings()
	settings.AutoReconnect = false
	settings.PingInterval = 0
	client.Connect(settings)

	conn := platform.nextConn(t)
	defer conn.Close()
	waitFor(t, "live state", func() bool { return client.State() == ClientStateLive })
	assert.Equal(t, true, client.Connected())
	assert.Equal(t, true, client.Authenticated())
	client.WithStore(func(store *Store) {
		assert.Equal(t, "me", store.AuthenticatedUser.Name)
	})

	// inbound frame reaches the store
	err = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","channel":"C1","user":"U1","text":"hello","ts":"1.000100"}`))
	assert.Equal(t, nil, err)
	waitFor(t, "message received", func() bool {
		ok := false
		client.WithStore(func(store *Store) {
			_, ok = store.Message("C1", "1.000100")
		})
		return ok
	})

	// outbound send is staged and escaped on the wire
	client.SendMessage("C1", "less < more")
	_, frame, err := conn.ReadMessage()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, strings.Contains(string(frame), "less &lt; more"))

	// confirm the send; the staged message promotes under the server ts
	err = conn.WriteMessage(websocket.TextMessage, []byte(`{"ok":true,"reply_to":1,"ts":"2.000200","text":"less &lt; more"}`))
	assert.Equal(t, nil, err)
	waitFor(t, "message promoted", func() bool {
		ok := false
		client.WithStore(func(store *Store) {
			_, ok = store.Message("C1", "2.000200")
		})
		return ok
	})

	// transport close clears the session
	conn.Close()
	waitFor(t, "disconnected state", func() bool { return client.State() == ClientStateDisconnected })
	assert.Equal(t, false, client.Connected())
	assert.Equal(t, false, client.Authenticated())
	client.WithStore(func(store *Store) {
		assert.Equal(t, nil, store.AuthenticatedUser)
	})

	waitFor(t, "disconnect notification", func() bool {
		for {
			select {
			case notification := <-notifications:
				if notification.Name == NotificationClientDisconnected {
					return true
				}
			default:
				return false
			}
		}
	})

	// without auto-reconnect the machine stays down: no snapshot refetch
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(1), platform.snapshotCount.Load())
}

func TestAutoReconnectRehydrates(t *testing.T) {
	platform := newTestPlatform(t)
	defer platform.Close()

	client, err := NewClient(platform.server.URL, "xoxp-test")
	assert.Equal(t, nil, err)
	defer client.Close()

	settings := DefaultConnectSettings()
	settings.AutoReconnect = true
	settings.PingInterval = 0
	settings.ReconnectTimeout = 100 * time.Millisecond
	client.Connect(settings)

	conn := platform.nextConn(t)
	waitFor(t, "live state", func() bool { return client.State() == ClientStateLive })
	assert.Equal(t, int64(1), platform.snapshotCount.Load())

	// drop the transport; the client refetches the full snapshot
	conn.Close()
	conn2 := platform.nextConn(t)
	defer conn2.Close()
	waitFor(t, "live again", func() bool { return client.State() == ClientStateLive })
	assert.Equal(t, true, int64(2) <= platform.snapshotCount.Load())
	client.WithStore(func(store *Store) {
		assert.Equal(t, "me", store.AuthenticatedUser.Name)
	})
}

func TestPingKeepalive(t *testing.T) {
	platform := newTestPlatform(t)
	defer platform.Close()

	client, err := NewClient(platform.server.URL, "xoxp-test")
	assert.Equal(t, nil, err)
	defer client.Close()

	settings := DefaultConnectSettings()
	settings.AutoReconnect = false
	settings.PingInterval = 50 * time.Millisecond
	client.Connect(settings)

	conn := platform.nextConn(t)
	defer conn.Close()
	waitFor(t, "live state", func() bool { return client.State() == ClientStateLive })

	// the heartbeat arrives as an app-level ping frame
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, strings.Contains(string(frame), `"type":"ping"`))

	// reply; the pong records a round trip
	err = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong","reply_to":1}`))
	assert.Equal(t, nil, err)
	waitFor(t, "round trip recorded", func() bool { return client.RoundTrip() != 0 })
}
