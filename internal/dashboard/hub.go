// Package dashboard broadcasts a simulator run's execution events to
// connected WebSocket clients, in the Hub/Client shape mbflow's
// observer.WebSocketObserver uses for its own execution events.
package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/controller"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Message is the JSON payload a Hub broadcasts for one controller.Event.
type Message struct {
	Kind       string    `json:"kind"`
	JobID      string    `json:"job_id,omitempty"`
	PilotJobID string    `json:"pilot_job_id,omitempty"`
	CopySrc    string    `json:"copy_src,omitempty"`
	CopyDst    string    `json:"copy_dst,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func toMessage(evt controller.Event) Message {
	m := Message{
		Kind:       evt.Kind.String(),
		JobID:      evt.JobID,
		PilotJobID: evt.PilotJobID,
		CopySrc:    evt.CopySrc,
		CopyDst:    evt.CopyDst,
		Timestamp:  time.Now(),
	}
	if evt.Cause != nil {
		m.Error = evt.Cause.Error()
	}
	return m
}

// Client is one connected WebSocket viewer.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans out broadcast Events to every registered Client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	log        wlog.Logger
	mu         sync.RWMutex
}

// NewHub creates a Hub and starts its broadcast loop in the background.
func NewHub(log wlog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With("component", "dashboard"),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.With("client_id", c.id).Info("dashboard client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.With("client_id", c.id).Info("dashboard client disconnected")

		case data := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount reports how many viewers are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish marshals evt and fans it out to every connected client.
func (h *Hub) Publish(evt controller.Event) {
	data, err := json.Marshal(toMessage(evt))
	if err != nil {
		h.log.ErrorErr(err, "marshal dashboard event")
		return
	}
	h.broadcast <- data
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades an incoming HTTP request to a WebSocket connection
// and registers the resulting Client with the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.ErrorErr(err, "websocket upgrade")
		return
	}
	c := &Client{id: r.RemoteAddr, conn: conn, send: make(chan []byte, 256), hub: h}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

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

func (c *Client) writePump() {
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
