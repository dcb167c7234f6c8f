package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RefreshEvent is pushed to every client after a fresh run
type RefreshEvent struct {
	Type           string            `json:"type"`
	RunID          string            `json:"run_id"`
	Provider       string            `json:"provider"`
	EvaluationDate contracts.Date    `json:"evaluation_date"`
	WrittenAt      time.Time         `json:"written_at"`
	Summary        contracts.Summary `json:"summary"`
}

// EventHarvestRefreshed is the type of RefreshEvent
const EventHarvestRefreshed = "harvest_refreshed"

// Hub fans refresh events out to websocket clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	closed  bool
	logger  *logger.Logger
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a websocket hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]bool),
		logger:  log,
	}
}

// Name identifies the hub as a result sink
func (h *Hub) Name() string { return "websocket" }

// Publish broadcasts a refresh event for the result set
func (h *Hub) Publish(_ context.Context, rs *contracts.ResultSet) error {
	data, err := json.Marshal(RefreshEvent{
		Type:           EventHarvestRefreshed,
		RunID:          rs.RunID,
		Provider:       rs.Provider,
		EvaluationDate: rs.EvaluationDate,
		WrittenAt:      rs.WrittenAt,
		Summary:        rs.Summarize(),
	})
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// broadcast queues data for every client; clients that cannot keep up
// are disconnected.
func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// ServeWS upgrades the connection and registers the client
// GET /ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("clients", count).Debug("WebSocket client connected")

	go client.writePump()
	go client.readPump()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("clients", count).Debug("WebSocket client disconnected")
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the close frame
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
