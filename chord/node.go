package chord

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Config holds everything needed to build one ring node.
type Config struct {
	// SelfAddress is the address this node is known by on the ring
	// (e.g. "host:49152"); it is hashed to derive the node's ring ID.
	SelfAddress string
	// Peers is the static membership list, possibly containing
	// SelfAddress, possibly with duplicates, possibly empty.
	Peers []string
	// IdleTimeout, if positive, shuts the node down that long after
	// Serve starts; the timer is not reset by incoming requests. It is
	// an operator-configurable watchdog, not a product requirement.
	IdleTimeout time.Duration
}

// Node wires a ring view, local store, hop client, and HTTP router
// into one running process, and owns its lifecycle.
type Node struct {
	ring    *RingView
	store   *Store
	router  *Router
	watcher *Watcher
	server  *http.Server
	logger  *log.Logger

	idleTimeout time.Duration
	idleTimer   *time.Timer
}

// NewNode constructs the ring view from cfg and wires the rest of the
// node around it. It fails only if the ring view construction fails
// (self not found in the ring), which is an implementation bug.
func NewNode(cfg Config) (*Node, error) {
	ring, err := NewRingView(cfg.SelfAddress, cfg.Peers)
	if err != nil {
		return nil, fmt.Errorf("chord: build ring view: %w", err)
	}

	store := NewStore()
	watcher := NewWatcher()
	hop := NewHopClient()
	router := NewRouter(ring, store, hop, watcher)

	n := &Node{
		ring:        ring,
		store:       store,
		router:      router,
		watcher:     watcher,
		logger:      log.New(os.Stderr, fmt.Sprintf("[%s] ", cfg.SelfAddress), log.LstdFlags),
		idleTimeout: cfg.IdleTimeout,
	}
	n.server = &http.Server{
		Handler:      router.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return n, nil
}

// Serve accepts connections on ln until ctx is cancelled or a
// termination signal (SIGINT/SIGTERM) is received, then drains
// in-flight requests and returns. Any bind-time listener error is the
// caller's responsibility (§6: exit 1 on bind failure).
func (n *Node) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	n.watcher.Start()
	if n.idleTimeout > 0 {
		n.idleTimer = time.AfterFunc(n.idleTimeout, func() {
			n.logger.Printf("idle timeout (%s) reached, shutting down", n.idleTimeout)
			n.Shutdown(context.Background())
		})
	}

	n.logger.Printf("ring id %s, %d fingers, neighbors %v",
		n.ring.SelfID().Text(16), len(n.ring.fingers), n.ring.Neighbors())

	serveErr := make(chan error, 1)
	go func() { serveErr <- n.server.Serve(ln) }()

	select {
	case <-ctx.Done():
		return n.Shutdown(context.Background())
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting new connections, drains in-flight ones, and
// releases the watchdog and watcher.
func (n *Node) Shutdown(ctx context.Context) error {
	if n.idleTimer != nil {
		n.idleTimer.Stop()
	}
	n.watcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := n.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("chord: graceful shutdown: %w", err)
	}
	n.logger.Println("stopped")
	return nil
}

// RingView exposes the node's ring view, mainly for tests.
func (n *Node) RingView() *RingView { return n.ring }

// Store exposes the node's local store, mainly for tests.
func (n *Node) Store() *Store { return n.store }
