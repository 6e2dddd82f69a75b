package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/A-ESxARG/receiver/internal/control"
	"github.com/A-ESxARG/receiver/internal/field"
	"github.com/A-ESxARG/receiver/internal/net/proto"
	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/internal/visual"
	"github.com/A-ESxARG/receiver/logging"
)

type recordingConn struct {
	mu        sync.Mutex
	deadlines []time.Time
	writes    [][]byte
	failAfter int
	closed    bool
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAfter > 0 && len(c.writes) >= c.failAfter {
		return errors.New("broken pipe")
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *recordingConn) SetWriteDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, deadline)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) snapshot() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes), c.closed
}

func fixedClock(at time.Time) logging.Clock {
	return logging.ClockFunc(func() time.Time { return at })
}

func TestHubIsAnAlwaysCompatibleSurface(t *testing.T) {
	hub := NewHub(HubConfig{})
	if w, h := hub.Bounds(); w != DefaultWidth || h != DefaultHeight {
		t.Fatalf("unexpected bounds %dx%d", w, h)
	}
	if _, err := visual.New(hub); err != nil {
		t.Fatalf("expected hub to be accepted as a surface: %v", err)
	}
}

func TestBroadcastSetsDeadlinesAndCountsBytes(t *testing.T) {
	now := time.Unix(1700000000, 0)
	metrics := &logging.Metrics{}
	hub := NewHub(HubConfig{Clock: fixedClock(now), Metrics: telemetry.WrapMetrics(metrics)})
	a, b := &recordingConn{}, &recordingConn{}
	if _, err := hub.Register(a); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := hub.Register(b); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := hub.Present(visual.Frame{Seq: 1, Columns: []float64{0.1, 0.2}}); err != nil {
		t.Fatalf("Present returned error: %v", err)
	}

	for _, conn := range []*recordingConn{a, b} {
		writes, _ := conn.snapshot()
		if writes != 2 {
			t.Fatalf("expected hello and frame, got %d writes", writes)
		}
		for _, d := range conn.deadlines {
			if !d.Equal(now.Add(writeWait)) {
				t.Fatalf("unexpected deadline %v", d)
			}
		}
	}
	snap := metrics.Snapshot()
	if snap[metricFramesSent] != 2 || snap[metricViewers] != 2 || snap[metricBytesSent] == 0 {
		t.Fatalf("unexpected metrics %v", snap)
	}
}

func TestBroadcastDropsFailingViewers(t *testing.T) {
	hub := NewHub(HubConfig{})
	healthy := &recordingConn{}
	broken := &recordingConn{failAfter: 1}
	hub.Register(healthy)
	hub.Register(broken)

	if sent := hub.Broadcast([]byte(`{}`)); sent != 1 {
		t.Fatalf("expected one successful write, got %d", sent)
	}
	if hub.Viewers() != 1 {
		t.Fatalf("expected broken viewer dropped, %d remain", hub.Viewers())
	}
	if _, closed := broken.snapshot(); !closed {
		t.Fatalf("expected broken viewer closed")
	}
}

func TestRegisterAfterCloseFails(t *testing.T) {
	hub := NewHub(HubConfig{})
	existing := &recordingConn{}
	hub.Register(existing)
	hub.Close()
	if _, closed := existing.snapshot(); !closed {
		t.Fatalf("expected Close to disconnect viewers")
	}
	late := &recordingConn{}
	if _, err := hub.Register(late); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, closed := late.snapshot(); !closed {
		t.Fatalf("expected late connection closed")
	}
}

func TestServeStreamsAndForwardsCommands(t *testing.T) {
	commands := make(chan control.Command, 4)
	hub := NewHub(HubConfig{
		Receiver: "test",
		Commands: func(cmd control.Command) bool {
			commands <- cmd
			return true
		},
	})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello proto.Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("failed to read hello: %v", err)
	}
	if hello.Type != proto.TypeHello || hello.ViewerID == "" || hello.Receiver != "test" {
		t.Fatalf("unexpected hello %+v", hello)
	}

	if err := hub.PublishTick(proto.Tick{Tick: 7, Band: "mid"}); err != nil {
		t.Fatalf("PublishTick returned error: %v", err)
	}
	var tick proto.Tick
	if err := conn.ReadJSON(&tick); err != nil {
		t.Fatalf("failed to read tick: %v", err)
	}
	if tick.Tick != 7 || tick.Type != proto.TypeTick {
		t.Fatalf("unexpected tick %+v", tick)
	}

	msg, _ := json.Marshal(proto.ClientMessage{Type: proto.TypeSignal, Signal: &proto.SignalRequest{Type: "burst"}})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("failed to send signal: %v", err)
	}
	select {
	case cmd := <-commands:
		if cmd.Kind != control.KindSignal || cmd.Signal.Type != field.KindBurst || cmd.Origin != "viewer:"+hello.ViewerID {
			t.Fatalf("unexpected command %+v", cmd)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("command not forwarded")
	}
	var ack proto.Ack
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("failed to read ack: %v", err)
	}
	if ack.Status != "ok" || ack.Of != proto.TypeSignal {
		t.Fatalf("unexpected ack %+v", ack)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`))
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("failed to read rejection: %v", err)
	}
	if ack.Status != "rejected" {
		t.Fatalf("expected rejection, got %+v", ack)
	}
}
