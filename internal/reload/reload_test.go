package reload

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHubTracksClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestNotifyReload(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.NotifyReload()

	if msg := readMessage(t, conn); msg.Type != TypeReload {
		t.Errorf("type = %q, want %q", msg.Type, TypeReload)
	}
}

func TestNotifyCSSOnlyReachesRegistrants(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	registered := dialHub(t, srv)
	other := dialHub(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	if err := registered.WriteJSON(Message{Register: "/styles.css"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for _, c := range hub.clients {
			if c.resources["/styles.css"] {
				return true
			}
		}
		return false
	})

	hub.NotifyCSS("/styles.css")
	hub.NotifyReload()

	msg := readMessage(t, registered)
	if msg.Type != TypeCSS || msg.File != "/styles.css" {
		t.Errorf("registered client got %+v, want css for /styles.css", msg)
	}

	// The unregistered client skips the css event and sees only the
	// reload that followed it.
	if msg := readMessage(t, other); msg.Type != TypeReload {
		t.Errorf("unregistered client got %+v, want reload", msg)
	}
}

func TestDeclinedClientSkipsReload(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	declined := dialHub(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	if err := declined.WriteJSON(Message{Decline: true}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for _, c := range hub.clients {
			if c.declined {
				return true
			}
		}
		return false
	})

	hub.NotifyReload()
	hub.NotifyError("boom")

	// The error broadcast still arrives; the reload did not.
	if msg := readMessage(t, declined); msg.Type != TypeError || msg.Error != "boom" {
		t.Errorf("got %+v, want error event", msg)
	}
}
