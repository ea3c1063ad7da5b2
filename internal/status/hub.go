package status

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	// subscriberBuffer is how many payloads may queue per subscriber before
	// the connection is considered too slow and closed.
	subscriberBuffer = 16

	// writeTimeout bounds a single payload write to one subscriber.
	writeTimeout = 5 * time.Second
)

// Hub is a websocket fan-out for status payloads. It serves the /status
// endpoint: each connected client receives every published payload as a JSON
// text message, starting with the most recent one so dashboards render the
// current state immediately.
type Hub struct {
	log *slog.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	last        *Payload
	closed      bool
}

type subscriber struct {
	payloads  chan Payload
	closeSlow func()
}

var (
	_ Publisher    = (*Hub)(nil)
	_ http.Handler = (*Hub)(nil)
)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger overrides the default logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		log:         slog.Default(),
		subscribers: make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request to a websocket and streams payloads until
// the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Status consumers are wall panels on the local network; their pages
		// are served from a different origin than this daemon.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer c.CloseNow()

	if err := h.subscribe(r.Context(), c); err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		h.log.Debug("status subscriber gone", "error", err)
	}
}

// subscribe runs one subscriber's write loop. The connection's read side is
// drained with CloseRead, which cancels the returned context when the client
// disconnects.
func (h *Hub) subscribe(ctx context.Context, c *websocket.Conn) error {
	ctx = c.CloseRead(ctx)

	s := &subscriber{
		payloads: make(chan Payload, subscriberBuffer),
		closeSlow: func() {
			c.Close(websocket.StatusPolicyViolation, "too slow to keep up with status stream")
		},
	}
	h.addSubscriber(s)
	defer h.removeSubscriber(s)

	for {
		select {
		case p := <-s.payloads:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c, p)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Hub) addSubscriber(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[s] = struct{}{}
	if h.last != nil {
		s.payloads <- *h.last
	}
}

func (h *Hub) removeSubscriber(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, s)
}

// Publish broadcasts p to all connected subscribers. Subscribers whose buffer
// is full are closed rather than blocking the pipeline.
func (h *Hub) Publish(p Payload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = &p
	for s := range h.subscribers {
		select {
		case s.payloads <- p:
		default:
			go s.closeSlow()
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close stops accepting payloads and disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subscribers {
		go s.closeSlow()
	}
}
