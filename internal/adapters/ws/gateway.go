// Package ws pushes drained telemetry to websocket observers. The
// gateway fans frames out to every connected client; a client that
// cannot keep up is disconnected rather than allowed to stall the rest.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	native "github.com/oculab/gazelink/internal/adapters/native"
	sample "github.com/oculab/gazelink/internal/domain/sample"
	"github.com/oculab/gazelink/pkg/logger"
	"github.com/oculab/gazelink/pkg/metrics"
)

// Default gateway configuration constants.
const (
	defaultSendBuffer = 64
)

// client is one websocket connection with its buffered outbound queue.
// mu guards closed so a broadcast racing removal can never send on the
// closed queue.
type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(conn *websocket.Conn, buffer int) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, buffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// trySend queues data without blocking. False means the client is
// closed or cannot keep up.
func (c *client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Gateway is the broadcast hub.
type Gateway struct {
	mu      sync.RWMutex
	clients map[*client]bool

	sendBuffer int
	snapshot   func() []Frame
	upgrader   websocket.Upgrader
	log        logger.Logger
}

// New creates a gateway with configuration options.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		clients:    make(map[*client]bool),
		sendBuffer: defaultSendBuffer,
		log:        logger.Named("ws"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Handler returns the upgrade handler for the /ws endpoint. Inbound
// messages are discarded; the socket is push-only.
func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Warn(r.Context(), "websocket upgrade", logger.Error(err))
			return
		}

		c := g.addClient(conn)
		g.log.Debug(r.Context(), "websocket client connected", logger.String("remote", r.RemoteAddr))

		go func() {
			defer func() {
				g.removeClient(c)
				g.log.Debug(context.Background(), "websocket client disconnected", logger.String("remote", r.RemoteAddr))
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (g *Gateway) addClient(conn *websocket.Conn) *client {
	c := newClient(conn, g.sendBuffer)

	g.mu.Lock()
	g.clients[c] = true
	count := len(g.clients)
	g.mu.Unlock()
	metrics.UpdateWSClients(count)

	// New clients get the snapshot frames first, e.g. the tracker list.
	if g.snapshot != nil {
		for _, frame := range g.snapshot() {
			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			if c.trySend(data) {
				metrics.RecordWSFrameSent()
			} else {
				metrics.RecordWSFrameDropped()
			}
		}
	}

	return c
}

func (g *Gateway) removeClient(c *client) {
	g.mu.Lock()
	if _, ok := g.clients[c]; ok {
		delete(g.clients, c)
		c.close()
	}
	count := len(g.clients)
	g.mu.Unlock()
	metrics.UpdateWSClients(count)
}

// BroadcastSamples pushes a drained batch to every client. Empty
// batches are suppressed.
func (g *Gateway) BroadcastSamples(handle string, kind sample.Kind, samples []sample.Sample) {
	if len(samples) == 0 {
		return
	}
	g.broadcast(Frame{
		Type:    FrameSamples,
		Handle:  handle,
		Stream:  kind.String(),
		Payload: SamplesPayload{Count: len(samples), Samples: samples},
	})
}

// BroadcastOccupancy pushes the buffer counters of one stream.
func (g *Gateway) BroadcastOccupancy(handle string, kind sample.Kind, length, capacity int, dropped uint64) {
	g.broadcast(Frame{
		Type:    FrameOccupancy,
		Handle:  handle,
		Stream:  kind.String(),
		Payload: OccupancyPayload{Length: length, Capacity: capacity, Dropped: dropped},
	})
}

// BroadcastTrackers pushes the current device list.
func (g *Gateway) BroadcastTrackers(infos []native.DeviceInfo) {
	g.broadcast(Frame{
		Type:    FrameTrackers,
		Payload: TrackersPayload{Trackers: infos},
	})
}

// BroadcastError pushes a daemon-side failure notice.
func (g *Gateway) BroadcastError(handle string, message string) {
	g.broadcast(Frame{
		Type:    FrameError,
		Handle:  handle,
		Payload: ErrorPayload{Message: message},
	})
}

func (g *Gateway) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		g.log.Error(context.Background(), "frame marshal", logger.Error(err))
		return
	}

	g.mu.RLock()
	clients := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	for _, c := range clients {
		if c.trySend(data) {
			metrics.RecordWSFrameSent()
			continue
		}
		// The queue is full; the client is stalling the stream.
		metrics.RecordWSFrameDropped()
		g.log.Warn(context.Background(), "websocket client too slow, disconnecting")
		g.removeClient(c)
	}
}

// ClientCount reports the number of connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Close disconnects every client.
func (g *Gateway) Close() {
	g.mu.Lock()
	for c := range g.clients {
		delete(g.clients, c)
		c.close()
	}
	g.mu.Unlock()
	metrics.UpdateWSClients(0)
}
