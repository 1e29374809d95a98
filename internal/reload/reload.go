// Package reload provides the development-mode live-reload hub.
// Rewritten documents register resources over WebSocket; the hub pushes
// change notifications back so the browser can swap a stylesheet or
// reload the page.
package reload

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// MessageType discriminates hub messages.
type MessageType string

const (
	TypeReload MessageType = "reload" // full page reload
	TypeCSS    MessageType = "css"    // single stylesheet changed
	TypeError  MessageType = "error"  // show build error overlay
	TypeClear  MessageType = "clear"  // clear error overlay
)

// Message is exchanged with browsers over the WebSocket.
// Clients send {"register": "/main.css"} to subscribe a resource and
// {"decline": true} to opt the document out of full reloads.
type Message struct {
	Type     MessageType `json:"type,omitempty"`
	File     string      `json:"file,omitempty"`
	Error    string      `json:"error,omitempty"`
	Register string      `json:"register,omitempty"`
	Decline  bool        `json:"decline,omitempty"`
}

// Hub tracks connected browsers and their registered resources.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*client
	upgrader websocket.Upgrader
}

type client struct {
	resources map[string]bool
	declined  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dev-only endpoint; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and consumes registration messages
// until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.clients[conn] = &client{resources: make(map[string]bool)}
	h.mu.Unlock()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		h.mu.Lock()
		c := h.clients[conn]
		if c != nil {
			if msg.Register != "" {
				c.resources[msg.Register] = true
			}
			if msg.Decline {
				c.declined = true
			}
		}
		h.mu.Unlock()
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// NotifyCSS notifies clients that registered the given stylesheet.
func (h *Hub) NotifyCSS(file string) {
	h.send(Message{Type: TypeCSS, File: file}, func(c *client) bool {
		return c.resources[file]
	})
}

// NotifyReload asks all clients that have not declined to reload.
func (h *Hub) NotifyReload() {
	h.send(Message{Type: TypeReload}, func(c *client) bool {
		return !c.declined
	})
}

// NotifyError pushes a build error to every client.
func (h *Hub) NotifyError(errMsg string) {
	h.send(Message{Type: TypeError, Error: errMsg}, nil)
}

// ClearError clears the error overlay on every client.
func (h *Hub) ClearError() {
	h.send(Message{Type: TypeClear}, nil)
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// send delivers msg to every client passing the filter (nil = all).
func (h *Hub) send(msg Message, filter func(*client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, c := range h.clients {
		if filter != nil && !filter(c) {
			continue
		}
		// A slow or dead client fails its own write; the read loop
		// cleans it up.
		conn.WriteMessage(websocket.TextMessage, data)
	}
}
