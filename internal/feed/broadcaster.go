// Package feed streams upserted swap records to websocket clients.
// Delivery is best effort: a client that cannot keep up loses messages.
package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/observability"
)

const (
	defaultBufferSize = 64
	writeWait         = 10 * time.Second
)

// SwapMessage is the JSON shape sent to clients.
type SwapMessage struct {
	Signature      string              `json:"signature"`
	RawID          int64               `json:"raw_id"`
	UserAddress    string              `json:"user_address,omitempty"`
	SwapFromToken  string              `json:"swapfromtoken,omitempty"`
	SwapFromAmount decimal.NullDecimal `json:"swapfromamount"`
	SwapToToken    string              `json:"swaptotoken,omitempty"`
	SwapToAmount   decimal.NullDecimal `json:"swaptoamount"`
	Source         string              `json:"source,omitempty"`
	Timestamp      *time.Time          `json:"timestamp"`
}

func newSwapMessage(r *domain.SwapRecord) SwapMessage {
	return SwapMessage{
		Signature:      r.Signature,
		RawID:          r.RawID,
		UserAddress:    r.UserAddress,
		SwapFromToken:  r.SwapFromToken,
		SwapFromAmount: r.SwapFromAmount,
		SwapToToken:    r.SwapToToken,
		SwapToAmount:   r.SwapToAmount,
		Source:         r.Source,
		Timestamp:      r.Timestamp,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster fans swap records out to connected websocket clients.
type Broadcaster struct {
	mu         sync.Mutex
	clients    map[*client]struct{}
	upgrader   websocket.Upgrader
	bufferSize int
	logger     *log.Logger
}

// Options contains configuration for creating a Broadcaster.
type Options struct {
	BufferSize int // Default: 64 messages per client
	Logger     *log.Logger
}

// NewBroadcaster creates a new websocket broadcaster.
func NewBroadcaster(opts Options) *Broadcaster {
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	// Origin is not checked. The mounting route enforces the Authorization header.
	return &Broadcaster{
		clients:    make(map[*client]struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Publish queues r for every client. It never blocks.
func (b *Broadcaster) Publish(r *domain.SwapRecord) {
	msg, err := json.Marshal(newSwapMessage(r))
	if err != nil {
		b.logger.Printf("Feed: failed to marshal swap %s: %v", r.Signature, err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		select {
		case c.send <- msg:
		default:
			observability.RecordFeedDropped()
		}
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		b.removeLocked(c)
	}
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Printf("Feed: websocket upgrade error: %v", err)
			return
		}

		c := &client{conn: conn, send: make(chan []byte, b.bufferSize)}
		b.mu.Lock()
		b.clients[c] = struct{}{}
		observability.SetFeedClients(len(b.clients))
		b.mu.Unlock()

		go b.writeLoop(c)
		go b.readLoop(c)
	}
}

// readLoop discards client messages and detects disconnects.
func (b *Broadcaster) readLoop(c *client) {
	defer b.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.Printf("Feed: websocket write error: %v", err)
			b.remove(c)
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(c)
}

func (b *Broadcaster) removeLocked(c *client) {
	if _, ok := b.clients[c]; !ok {
		return
	}
	delete(b.clients, c)
	close(c.send)
	observability.SetFeedClients(len(b.clients))
}
