package chord

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RouteEvent describes one routing decision made by the router, for
// operator observability. It plays no part in the KV contract.
type RouteEvent struct {
	Time    time.Time `json:"time"`
	Method  string    `json:"method"`
	Path    string    `json:"path"`
	Outcome string    `json:"outcome"` // "local", "forward", "bad_gateway", "ttl_exceeded"
	Peer    string    `json:"peer,omitempty"`
	Status  int       `json:"status"`
	TraceID string    `json:"trace_id,omitempty"`
}

// Watcher broadcasts RouteEvents to connected debug clients over a
// websocket. A node with no connected watchers pays only the cost of a
// non-blocking channel send.
type Watcher struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	events   chan RouteEvent
	quit     chan struct{}
}

// NewWatcher returns a Watcher ready to accept connections and publish
// events once Start is called.
func NewWatcher() *Watcher {
	return &Watcher{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan RouteEvent, 64),
		quit:    make(chan struct{}),
	}
}

// Start runs the broadcast loop until Stop is called.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case ev := <-w.events:
				w.broadcast(ev)
			case <-w.quit:
				return
			}
		}
	}()
}

// Stop closes every connected client and halts the broadcast loop.
func (w *Watcher) Stop() {
	close(w.quit)
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		c.Close()
	}
	w.clients = make(map[*websocket.Conn]bool)
}

// Publish queues ev for broadcast, dropping it if no capacity is
// available rather than blocking the serving goroutine.
func (w *Watcher) Publish(ev RouteEvent) {
	select {
	case w.events <- ev:
	default:
	}
}

func (w *Watcher) broadcast(ev RouteEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("watch: marshal event: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Close()
			delete(w.clients, c)
		}
	}
}

// ServeHTTP upgrades the connection and registers it as a watcher
// client until it disconnects.
func (w *Watcher) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("watch: upgrade failed: %v", err)
		return
	}

	w.mu.Lock()
	w.clients[conn] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.clients, conn)
		w.mu.Unlock()
		conn.Close()
	}()

	// The feed is one-directional; drain and discard any inbound
	// messages until the client closes, so reads detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
