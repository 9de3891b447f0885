package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/CageChen/filedesk/internal/fs"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// WSMessage is a message pushed to websocket clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// wsClient is one browser connection. Messages queue on send and are
// written by the connection's own loop, so writes never interleave.
type wsClient struct {
	send chan []byte
}

// WSHandler pushes namespace changes to connected browsers.
type WSHandler struct {
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	pongWait   time.Duration

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewWSHandler creates a websocket handler with no clients.
func NewWSHandler() *WSHandler {
	return &WSHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		clients:    make(map[*wsClient]struct{}),
	}
}

// HandleWS upgrades the connection and serves it until the client leaves
// or stops answering pings.
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger(c).WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &wsClient{send: make(chan []byte, sendBuffer)}
	h.addClient(client)
	defer h.removeClient(client)

	// Clients only listen; the reader handles pongs and notices disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// OnFileChange queues a namespace change for every connected client.
func (h *WSHandler) OnFileChange(event fs.Event) {
	data, err := json.Marshal(WSMessage{
		Type: "fileChange",
		Payload: map[string]string{
			"event": event.Op.String(),
			"name":  event.Name,
		},
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// A stalled client misses events; its next listing catches up.
		}
	}
}

func (h *WSHandler) addClient(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *WSHandler) removeClient(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

func (h *WSHandler) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
