package chord

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Router is the HTTP front end: it terminates inbound requests,
// consults the ring view, and either serves them locally or forwards
// them one hop closer to the owner.
type Router struct {
	ring    *RingView
	store   *Store
	hop     HopClient
	watcher *Watcher
	mux     *http.ServeMux
}

// NewRouter wires a Router against its ring view, local store, and hop
// client. watcher may be nil, in which case routing decisions are not
// published anywhere.
func NewRouter(ring *RingView, store *Store, hop HopClient, watcher *Watcher) *Router {
	r := &Router{ring: ring, store: store, hop: hop, watcher: watcher}
	r.mux = http.NewServeMux()
	r.setupRoutes()
	return r
}

// Handler returns the http.Handler to mount on a listener.
func (r *Router) Handler() http.Handler { return r.mux }

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/helloworld", r.handleHelloWorld)
	r.mux.HandleFunc("/network", r.handleNetwork)
	r.mux.HandleFunc("/storage/", r.handleStorage)
	if r.watcher != nil {
		r.mux.HandleFunc("/debug/watch", r.watcher.ServeHTTP)
	}
}

// handleHelloWorld answers GET/HEAD /helloworld with this node's own
// address.
func (r *Router) handleHelloWorld(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.notFound(w, req)
		return
	}
	r.writePlain(w, req, http.StatusOK, []byte(r.ring.SelfAddress()))
}

// handleNetwork answers GET/HEAD /network with this node's local
// neighbor view as a JSON array of addresses.
func (r *Router) handleNetwork(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.notFound(w, req)
		return
	}
	body, err := json.Marshal(r.ring.Neighbors())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	r.writeJSON(w, req, http.StatusOK, body)
}

// handleStorage dispatches GET/HEAD/PUT against /storage/<key>.
func (r *Router) handleStorage(w http.ResponseWriter, req *http.Request) {
	key := strings.TrimPrefix(req.URL.Path, "/storage/")
	if key == "" {
		r.notFound(w, req)
		return
	}
	keyID := HashID(key)

	switch req.Method {
	case http.MethodGet, http.MethodHead:
		r.handleStorageGet(w, req, key, keyID)
	case http.MethodPut:
		r.handleStoragePut(w, req, key, keyID)
	default:
		r.notFound(w, req)
	}
}

func (r *Router) handleStorageGet(w http.ResponseWriter, req *http.Request, key string, keyID *big.Int) {
	if r.ring.IsResponsible(keyID) {
		value, ok := r.store.Get(key)
		if !ok {
			r.publish(req, "local", "", http.StatusNotFound)
			r.writePlain(w, req, http.StatusNotFound, nil)
			return
		}
		r.publish(req, "local", "", http.StatusOK)
		r.writePlain(w, req, http.StatusOK, value)
		return
	}
	r.forward(w, req, keyID, nil)
}

func (r *Router) handleStoragePut(w http.ResponseWriter, req *http.Request, key string, keyID *big.Int) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "error reading request body", http.StatusInternalServerError)
		return
	}

	if r.ring.IsResponsible(keyID) {
		r.store.Put(key, body)
		r.publish(req, "local", "", http.StatusOK)
		r.writePlain(w, req, http.StatusOK, nil)
		return
	}
	r.forward(w, req, keyID, body)
}

// forward decrements the TTL, selects the next hop via the finger
// table, and relays the upstream reply back to the originating client.
// body is nil for GET/HEAD and the already-read request body for PUT.
func (r *Router) forward(w http.ResponseWriter, req *http.Request, keyID *big.Int, body []byte) {
	traceID := req.Header.Get(TraceHeader)
	ttl := r.readTTL(req)
	if ttl <= 0 {
		r.publish(req, "ttl_exceeded", "", http.StatusGatewayTimeout)
		r.writePlain(w, req, http.StatusGatewayTimeout, []byte("TTL exceeded"))
		return
	}

	next := r.ring.ClosestPrecedingFinger(keyID)

	resp, err := r.hop.Forward(req.Context(), next, req.Method, req.URL.Path, body, ttl-1, traceID)
	if err != nil {
		r.publish(req, "bad_gateway", next, http.StatusBadGateway)
		msg := fmt.Sprintf("forward error to %s: %v", next, err)
		r.writePlain(w, req, http.StatusBadGateway, []byte(msg))
		return
	}

	r.publish(req, "forward", next, resp.StatusCode)
	r.relay(w, req, resp)
}

// relay writes an upstream HopResponse to the originating client,
// carrying over only status, Content-Type, and body — every
// hop-by-hop header from the upstream reply is dropped by construction
// since HopResponse never retains them.
func (r *Router) relay(w http.ResponseWriter, req *http.Request, resp *HopResponse) {
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.StatusCode)
	if req.Method != http.MethodHead {
		w.Write(resp.Body)
	}
}

func (r *Router) readTTL(req *http.Request) int {
	raw := req.Header.Get(TTLHeader)
	if raw == "" {
		return DefaultTTL
	}
	ttl, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultTTL
	}
	return ttl
}

func (r *Router) publish(req *http.Request, outcome, peer string, status int) {
	if r.watcher == nil {
		return
	}
	r.watcher.Publish(RouteEvent{
		Time:    time.Now(),
		Method:  req.Method,
		Path:    req.URL.Path,
		Outcome: outcome,
		Peer:    peer,
		Status:  status,
		TraceID: req.Header.Get(TraceHeader),
	})
}

// writePlain writes a text/plain response with the Cache-Control and
// Content-Length headers the spec requires on every response, omitting
// the body for HEAD requests.
func (r *Router) writePlain(w http.ResponseWriter, req *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if req.Method != http.MethodHead && len(body) > 0 {
		w.Write(body)
	}
}

// writeJSON writes an application/json response, omitting the body for
// HEAD requests.
func (r *Router) writeJSON(w http.ResponseWriter, req *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if req.Method != http.MethodHead {
		w.Write(body)
	}
}

func (r *Router) notFound(w http.ResponseWriter, req *http.Request) {
	r.writePlain(w, req, http.StatusNotFound, nil)
}
