// Package broadcast - Fans detection snapshots out to WebSocket viewers.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/camdetect/detection"
	"github.com/nvr-ai/camdetect/geometry"
	"github.com/nvr-ai/camdetect/logging"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 4
)

// Item is one detection in camera pixel coordinates.
type Item struct {
	Category   string  `json:"category"`
	CategoryID int     `json:"category_id"`
	Score      float32 `json:"score"`
	Left       float32 `json:"left"`
	Top        float32 `json:"top"`
	Right      float32 `json:"right"`
	Bottom     float32 `json:"bottom"`
}

// Message is one published snapshot.
type Message struct {
	FrameID    int    `json:"frame_id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Detections []Item `json:"detections"`
}

// NewMessage flattens results into a Message ordered by category id, keeping
// detector output order within each category.
func NewMessage(frameID int, region geometry.SizedRegion, results detection.Results) Message {
	msg := Message{
		FrameID:    frameID,
		Width:      region.Width,
		Height:     region.Height,
		Detections: make([]Item, 0, results.Count()),
	}
	for _, d := range results.Flatten() {
		msg.Detections = append(msg.Detections, Item{
			Category:   d.Category.String(),
			CategoryID: int(d.Category),
			Score:      d.Score,
			Left:       d.Box.Left,
			Top:        d.Box.Top,
			Right:      d.Box.Right,
			Bottom:     d.Box.Bottom,
		})
	}
	return msg
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub keeps the set of connected viewers. Publish never blocks: a viewer
// whose buffer is full misses that snapshot.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates an empty hub accepting connections from any origin.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logging.NewNop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and streams snapshots until the viewer
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.logger.Infow("viewer connected", "remote", r.RemoteAddr, "viewers", h.Clients())

	go h.write(c)
	h.read(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// read discards viewer input and detects disconnects.
func (h *Hub) read(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.logger.Debugw("viewer disconnected", "error", err)
			return
		}
	}
}

func (h *Hub) write(c *client) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warnw("dropping viewer after write error", "error", err)
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// Publish encodes the snapshot once and queues it for every viewer.
//
// Arguments:
//   - frameID: The frame the results were detected on.
//   - region: The camera canvas the boxes refer to.
//   - results: The snapshot to send.
//
// Returns:
//   - int: The number of viewers the message was queued for.
//   - error: If encoding fails.
func (h *Hub) Publish(frameID int, region geometry.SizedRegion, results detection.Results) (int, error) {
	payload, err := json.Marshal(NewMessage(frameID, region, results))
	if err != nil {
		return 0, errors.Wrap(err, "encode snapshot")
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	queued := 0
	for c := range h.clients {
		select {
		case c.send <- payload:
			queued++
		default:
			h.logger.Debugw("viewer is behind, skipping snapshot", "frame", frameID)
		}
	}
	return queued, nil
}

// Clients is the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}
