package chord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the hop budget assumed when a request arrives without
// an X-Chord-TTL header. 32 comfortably exceeds log2(N) for any
// plausible ring size, so an accidental routing cycle is caught well
// before it could exhaust file descriptors.
const DefaultTTL = 32

// TTLHeader carries the remaining hop budget on a forwarded request.
const TTLHeader = "X-Chord-TTL"

// TraceHeader carries a trace identifier minted once at the entry node
// and propagated unchanged across every hop, so an operator can grep a
// single forwarding chain out of interleaved per-node logs.
const TraceHeader = "X-Chord-Trace-Id"

// hopTimeout bounds a single forwarded request end-to-end.
const hopTimeout = 5 * time.Second

// HopResponse is the result of forwarding a request to another node.
type HopResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// HopClient forwards a single request to a peer node and returns its
// response. Implementations are one-shot: each call owns its own
// connection and is expected to close it on every exit path.
type HopClient interface {
	Forward(ctx context.Context, addr, method, path string, body []byte, ttl int, traceID string) (*HopResponse, error)
}

// httpHopClient forwards with Connection: close, one connection per
// request. The requests go out as HTTP/1.1 (the net/http client does not
// send HTTP/1.0 request lines).
type httpHopClient struct {
	client *http.Client
}

// NewHopClient returns the production HopClient: Connection: close
// via DisableKeepAlives, a 5s per-hop timeout, one connection per call.
func NewHopClient() HopClient {
	return &httpHopClient{
		client: &http.Client{
			Timeout: hopTimeout,
			Transport: &http.Transport{
				DisableKeepAlives: true,
			},
		},
	}
}

func (c *httpHopClient) Forward(ctx context.Context, addr, method, path string, body []byte, ttl int, traceID string) (*HopResponse, error) {
	url := "http://" + addr + path

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build forward request to %s: %w", addr, err)
	}
	req.Close = true
	req.Header.Set(TTLHeader, strconv.Itoa(ttl))
	if traceID == "" {
		traceID = uuid.New().String()
	}
	req.Header.Set(TraceHeader, traceID)
	if method == http.MethodPut {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forward to %s: %w", addr, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", addr, err)
	}

	return &HopResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
