package leaderboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message is what live subscribers receive.
type Message struct {
	Type      string    `json:"type"`
	Entries   []Entry   `json:"entries"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub pushes the top of the board to websocket subscribers after each write.
type Hub struct {
	upgrader websocket.Upgrader
	top      int

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(top int) *Hub {
	if top <= 0 {
		top = DefaultTop
	}
	return &Hub{
		top: top,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Mini App pages are served from a different origin than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

// ServeWS upgrades the request and sends the current board right away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, current []Entry) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("leaderboard: websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}
	if msg, err := h.encode(current); err == nil {
		c.send <- msg
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	go c.readPump(h)
}

// Publish sends the new top entries to every subscriber. Slow subscribers
// are dropped instead of blocking the writer.
func (h *Hub) Publish(entries []Entry) {
	msg, err := h.encode(entries)
	if err != nil {
		log.Printf("leaderboard: encode update: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(Message{Type: "leaderboard", Entries: Top(entries, h.top), Timestamp: time.Now()})
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Subscribers never send anything meaningful; reading keeps pongs flowing.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("leaderboard: websocket error: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
