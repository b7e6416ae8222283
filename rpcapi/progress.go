package rpcapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/log"
)

// ProgressEvent is pushed to subscribers as a suite advances through the
// provisioning pipeline.
type ProgressEvent struct {
	Token common.TokenId            `json:"token"`
	State durablestate.InstallState `json:"state"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressHub fans out install-pipeline progress events to connected
// admin clients, the same role the teacher's own WS RPC transport plays
// for subscription notifications.
type ProgressHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewProgressHub constructs an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{clients: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the connection and registers it for broadcasts.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("rpcapi: websocket upgrade failed", "err", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.readUntilClose(conn)
}

// readUntilClose blocks reading (and discarding) frames until the peer
// disconnects, then deregisters the connection — the conventional
// gorilla/websocket server-side read pump.
func (h *ProgressHub) readUntilClose(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast pushes ev to every connected client, dropping any connection
// that errors on write.
func (h *ProgressHub) Broadcast(ev ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warn("rpcapi: failed to marshal progress event", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
