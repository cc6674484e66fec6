package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-moodcam/internal/log"
)

// Hub fans messages out to its registered clients. One goroutine (Run) owns
// the client set; everything else talks to it over channels.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once

	// count mirrors len(clients) for readers outside Run.
	count   atomic.Int32
	running atomic.Bool
	dropped atomic.Int64
}

// New creates a hub. name tags its log lines.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Component("hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run is the hub's main loop. Call it in its own goroutine; it returns
// after Stop, closing every client's send channel.
func (h *Hub) Run() {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int32(len(h.clients)))
			h.logger.Debug("client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("client disconnected", "clients", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Too slow to keep up.
					h.remove(client)
					h.logger.Warn("dropped slow client", "clients", len(h.clients))
				}
			}

		case <-h.quit:
			for client := range h.clients {
				h.remove(client)
			}
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.count.Store(int32(len(h.clients)))
}

// Stop ends Run. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast queues msg for every client. When the queue is full the
// message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		if n := h.dropped.Add(1); n%100 == 1 {
			h.logger.Warn("broadcast queue full, dropping messages", "dropped", n)
		}
	}
}

// BroadcastJSON encodes v and broadcasts it as a text message.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Frame: websocket.TextMessage, Data: data})
	return nil
}

// BroadcastBinary broadcasts binary data such as JPEG frames.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Message{Frame: websocket.BinaryMessage, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Name returns the hub name.
func (h *Hub) Name() string {
	return h.name
}
