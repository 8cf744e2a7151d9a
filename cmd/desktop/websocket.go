package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/youngukshin9402-code/cloud-sync-manager/cmd/desktop/handlers"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/supabase"
	syncpkg "github.com/youngukshin9402-code/cloud-sync-manager/internal/sync"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Only pages served from loopback may connect
	CheckOrigin: handlers.LocalOrigin,
}

// WSClient represents a WebSocket client connection.
type WSClient struct {
	id            string
	conn          *websocket.Conn
	send          chan []byte
	hub           *WSHub
	mu            sync.Mutex
	subscriptions map[string]bool
	closed        bool
}

// close closes send once. Caller holds the hub lock.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// wants reports whether the client receives eventType. A client without
// subscriptions receives everything.
func (c *WSClient) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

// WSHub maintains active client connections and broadcasts messages.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	mu         sync.RWMutex
}

type wsMessage struct {
	eventType string
	payload   []byte
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

const (
	EventSyncStarted   = "sync.started"
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"
	EventSyncSkipped   = "sync.skipped"

	EventQueueChanged = "queue.changed"

	EventGymRecordChanged = "gym_record.changed"
)

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
	go hub.run()
	return hub
}

// Close stops the hub and disconnects every client.
func (h *WSHub) Close() {
	close(h.done)
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("WebSocket client connected", map[string]interface{}{"client": client.id, "total": total})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("WebSocket client disconnected", map[string]interface{}{"client": client.id, "total": total})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				if !client.wants(msg.eventType) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Client send buffer is full, close connection
					client.close()
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all subscribed clients. It never blocks;
// messages are dropped when the hub is saturated.
func (h *WSHub) Broadcast(messageType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		logging.Warn("Failed to marshal WebSocket message", map[string]interface{}{"error": err.Error()})
		return
	}

	select {
	case h.broadcast <- wsMessage{eventType: messageType, payload: bytes}:
	default:
		logging.Warn("WebSocket broadcast dropped", map[string]interface{}{"type": messageType})
	}
}

// OnSyncEvent forwards drain events to clients. It implements
// sync.SyncEventHandler.
func (h *WSHub) OnSyncEvent(event syncpkg.SyncEvent) {
	var eventType string
	switch event.Type {
	case syncpkg.SyncEventStarted:
		eventType = EventSyncStarted
	case syncpkg.SyncEventCompleted:
		eventType = EventSyncCompleted
	case syncpkg.SyncEventFailed:
		eventType = EventSyncFailed
	case syncpkg.SyncEventSkipped:
		eventType = EventSyncSkipped
	default:
		return
	}

	data := map[string]interface{}{"owner_id": event.OwnerID}
	if r := event.Result; r != nil {
		data["success"] = r.Success
		data["failed"] = r.Failed
		data["dropped"] = r.Dropped
		data["duration"] = r.Duration.Milliseconds()
	}
	if event.Error != "" {
		data["error"] = event.Error
	}
	h.Broadcast(eventType, data)
}

// BroadcastQueueChanged notifies clients of the pending queue length.
func (h *WSHub) BroadcastQueueChanged(total int) {
	h.Broadcast(EventQueueChanged, map[string]interface{}{"total": total})
}

// BroadcastGymRecordChanged relays a gym_records change from the feed.
func (h *WSHub) BroadcastGymRecordChanged(change supabase.Change) {
	date, _ := change.Record["date"].(string)
	if date == "" {
		date, _ = change.OldRecord["date"].(string)
	}
	h.Broadcast(EventGymRecordChanged, map[string]interface{}{
		"change": change.Type,
		"date":   date,
	})
}

// readPump pumps messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("WebSocket read failed", map[string]interface{}{"client": c.id, "error": err.Error()})
			}
			break
		}

		var msg struct {
			Action string   `json:"action"`
			Events []string `json:"events"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(map[string]interface{}{"action": "subscribe_ack", "subscribed": msg.Events})

		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()

		case "ping":
			c.reply(map[string]interface{}{"action": "pong"})
		}
	}
}

// writePump pumps messages to the WebSocket connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply sends a control message to this client only.
func (c *WSClient) reply(envelope map[string]interface{}) {
	envelope["timestamp"] = time.Now().Unix()
	bytes, _ := json.Marshal(envelope)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- bytes:
	default:
	}
}

// HandleWebSocket handles WebSocket connections.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
			return
		}

		client := &WSClient{
			id:            time.Now().Format("20060102150405.000") + "-" + r.RemoteAddr,
			conn:          conn,
			send:          make(chan []byte, 256),
			hub:           hub,
			subscriptions: make(map[string]bool),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
