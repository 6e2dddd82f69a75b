// Package ws fans visualizer frames and step summaries out to websocket
// viewers and forwards their control messages to the host.
package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/A-ESxARG/receiver/internal/control"
	"github.com/A-ESxARG/receiver/internal/net/proto"
	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/internal/visual"
	"github.com/A-ESxARG/receiver/logging"
)

const (
	writeWait = 10 * time.Second

	DefaultWidth  = 64
	DefaultHeight = 16

	metricFramesSent = "hub_frames_sent_total"
	metricBytesSent  = "hub_bytes_sent_total"
	metricViewers    = "hub_viewers"
)

// ErrClosed reports a registration against a closed hub.
var ErrClosed = errors.New("hub closed")

// Conn is the write side of a viewer connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// HubConfig tunes a Hub. Zero values fall back to defaults.
type HubConfig struct {
	// Width and Height are the virtual surface reported to the visualizer.
	Width  int
	Height int
	// Receiver names the receiver in viewer greetings.
	Receiver  string
	WriteWait time.Duration
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	// Commands receives viewer commands. The returned bool reports whether
	// the command was queued.
	Commands func(control.Command) bool
}

type viewer struct {
	conn Conn
	mu   sync.Mutex
}

// Hub is a visual.Surface that broadcasts to every connected viewer.
type Hub struct {
	cfg HubConfig

	mu      sync.Mutex
	viewers map[string]*viewer
	closed  bool
}

var _ visual.Surface = (*Hub)(nil)

// NewHub constructs a hub without viewers.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = writeWait
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard()
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	return &Hub{cfg: cfg, viewers: make(map[string]*viewer)}
}

// Bounds reports the virtual surface size. It does not depend on whether
// any viewer is connected.
func (h *Hub) Bounds() (int, int) {
	return h.cfg.Width, h.cfg.Height
}

// Present broadcasts a rendered frame.
func (h *Hub) Present(f visual.Frame) error {
	data, err := proto.EncodeFrame(f, h.cfg.Clock.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	h.Broadcast(data)
	return nil
}

// PublishTick broadcasts a step summary.
func (h *Hub) PublishTick(msg proto.Tick) error {
	data, err := proto.EncodeTick(msg)
	if err != nil {
		return fmt.Errorf("encode tick: %w", err)
	}
	h.Broadcast(data)
	return nil
}

// Broadcast writes data to every viewer and drops viewers whose write fails.
// It returns the number of successful writes.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.Lock()
	targets := make(map[string]*viewer, len(h.viewers))
	for id, v := range h.viewers {
		targets[id] = v
	}
	h.mu.Unlock()

	sent := 0
	for id, v := range targets {
		if err := h.write(v, data); err != nil {
			h.cfg.Logger.Printf("[hub] dropping viewer %s: %v", id, err)
			h.Disconnect(id)
			continue
		}
		sent++
	}
	if h.cfg.Metrics != nil && sent > 0 {
		h.cfg.Metrics.Add(metricFramesSent, uint64(sent))
		h.cfg.Metrics.Add(metricBytesSent, uint64(sent*len(data)))
	}
	return sent
}

func (h *Hub) write(v *viewer, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.conn.SetWriteDeadline(h.cfg.Clock.Now().Add(h.cfg.WriteWait)); err != nil {
		return err
	}
	return v.conn.WriteMessage(websocket.TextMessage, data)
}

// Register adds conn as a viewer, greets it and returns its id.
func (h *Hub) Register(conn Conn) (string, error) {
	id := uuid.NewString()
	v := &viewer{conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return "", ErrClosed
	}
	h.viewers[id] = v
	count := len(h.viewers)
	h.mu.Unlock()
	h.storeViewers(count)

	hello, err := proto.EncodeHello(id, h.cfg.Receiver, h.cfg.Width, h.cfg.Height)
	if err != nil {
		h.Disconnect(id)
		return "", fmt.Errorf("encode hello: %w", err)
	}
	if err := h.write(v, hello); err != nil {
		h.Disconnect(id)
		return "", fmt.Errorf("greet viewer %s: %w", id, err)
	}
	return id, nil
}

// Disconnect removes and closes a viewer. Unknown ids are ignored.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	v, ok := h.viewers[id]
	if ok {
		delete(h.viewers, id)
	}
	count := len(h.viewers)
	h.mu.Unlock()
	if !ok {
		return
	}
	v.conn.Close()
	h.storeViewers(count)
}

// Serve registers conn and reads viewer messages until the connection fails.
func (h *Hub) Serve(conn *websocket.Conn) {
	id, err := h.Register(conn)
	if err != nil {
		h.cfg.Logger.Printf("[hub] register viewer: %v", err)
		return
	}
	defer h.Disconnect(id)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.cfg.Logger.Printf("[hub] discarding malformed message from %s: %v", id, err)
			continue
		}
		status, reason := "ok", ""
		cmd, ok := proto.ClientCommand(msg)
		switch {
		case !ok:
			status, reason = "rejected", "unrecognised message"
		case h.cfg.Commands == nil || !h.cfg.Commands(withOrigin(cmd, id)):
			status, reason = "rejected", "queue full"
		}
		ack, err := proto.EncodeAck(msg.Type, status, reason)
		if err != nil {
			continue
		}
		h.mu.Lock()
		v := h.viewers[id]
		h.mu.Unlock()
		if v == nil {
			return
		}
		if err := h.write(v, ack); err != nil {
			return
		}
	}
}

func withOrigin(cmd control.Command, id string) control.Command {
	cmd.Origin = "viewer:" + id
	return cmd
}

// Viewers reports how many viewers are connected.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Snapshot lists connected viewer ids for diagnostics.
func (h *Hub) Snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.viewers))
	for id := range h.viewers {
		ids = append(ids, id)
	}
	return ids
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	viewers := h.viewers
	h.viewers = make(map[string]*viewer)
	h.mu.Unlock()
	for _, v := range viewers {
		v.mu.Lock()
		v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
		v.mu.Unlock()
		v.conn.Close()
	}
	h.storeViewers(0)
	return nil
}

func (h *Hub) storeViewers(count int) {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.Store(metricViewers, uint64(count))
	}
}
