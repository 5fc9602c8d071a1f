package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"

	"audit-dashboard/models"
)

// WebSocketHub manages dashboard subscriber connections and pushes session
// events (queue status, refresh notifications) to all of them.
type WebSocketHub struct {
	clients    map[*WebSocketClient]bool
	broadcast  chan models.BroadcastEvent
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	mutex      sync.RWMutex
}

// WebSocketClient represents one subscriber connection.
type WebSocketClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
}

// NewWebSocketHub creates a hub. Call Start in its own goroutine.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan models.BroadcastEvent, 16),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
	}
}

// Start runs the hub event loop.
func (h *WebSocketHub) Start() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Infof("websocket subscriber connected, %d active", h.ClientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			log.Infof("websocket subscriber disconnected, %d active", h.ClientCount())

		case event := <-h.broadcast:
			data := h.serializeEvent(event)
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Stop disconnects all subscribers.
func (h *WebSocketHub) Stop() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// RegisterClient attaches an upgraded connection to the hub.
func (h *WebSocketHub) RegisterClient(conn *websocket.Conn) {
	client := &WebSocketClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// Broadcast queues an event for delivery to every subscriber. It never
// blocks the caller: if the hub loop is saturated the event is dropped,
// since the next status poll replaces it anyway.
func (h *WebSocketHub) Broadcast(event string, payload interface{}) {
	select {
	case h.broadcast <- models.BroadcastEvent{Event: event, Payload: payload, Timestamp: time.Now().UTC()}:
	default:
		log.Warnf("websocket broadcast queue full, dropping %s event", event)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *WebSocketHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHub) serializeEvent(event models.BroadcastEvent) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("failed to serialize websocket event: %v", err)
		return []byte("{}")
	}
	return data
}

// readPump drains the connection so pings and close frames are processed.
// Subscribers are push-only; inbound payloads are ignored.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("websocket read error: %v", err)
			}
			break
		}
	}
}

// writePump pumps hub events to the connection and keeps it alive with
// periodic pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
