package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/A-ESxARG/receiver/internal/audio"
	"github.com/A-ESxARG/receiver/internal/config"
	"github.com/A-ESxARG/receiver/internal/journal"
	"github.com/A-ESxARG/receiver/internal/recording"
	"github.com/A-ESxARG/receiver/internal/telemetry"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.TickRate = 100
	cfg.LogSinks = []string{"memory"}
	cfg.RecordPath = filepath.Join(t.TempDir(), "run.db")
	return cfg
}

func TestRunServesAndRecords(t *testing.T) {
	cfg := testConfig(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	null := audio.NewNull(8000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{
			Logger:       telemetry.Discard(),
			Stdout:       io.Discard,
			Listener:     listener,
			AudioFactory: func() (audio.Output, error) { return null, nil },
		})
	}()
	base := "http://" + listener.Addr().String()

	resp, err := http.Post(base+"/signal", "application/json", strings.NewReader(`{"type":"burst","intensity":1}`))
	if err != nil {
		cancel()
		t.Fatalf("post signal: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		cancel()
		t.Fatalf("expected signal accepted, got %d", resp.StatusCode)
	}

	var diag struct {
		Receiver struct {
			Latest *Summary `json:"latest"`
		} `json:"receiver"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/diagnostics")
		if err == nil {
			json.NewDecoder(resp.Body).Decode(&diag)
			resp.Body.Close()
		}
		if diag.Receiver.Latest != nil && diag.Receiver.Latest.Tick >= 5 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("receiver did not advance")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if diag.Receiver.Latest.Headless {
		cancel()
		t.Fatalf("expected an engine bound to the null output")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not stop")
	}

	if resumes, suspends := null.Transitions(); resumes != 1 || suspends != 1 {
		t.Fatalf("expected audio resumed and suspended once, got %d/%d", resumes, suspends)
	}

	store, err := recording.Open(context.Background(), cfg.RecordPath)
	if err != nil {
		t.Fatalf("reopen recording: %v", err)
	}
	defer store.Close()
	sessions, err := store.Sessions(context.Background())
	if err != nil || len(sessions) != 1 {
		t.Fatalf("expected one session, got %v (%v)", sessions, err)
	}
	ticks, err := store.Ticks(context.Background(), sessions[0].ID)
	if err != nil {
		t.Fatalf("read ticks: %v", err)
	}
	if len(ticks) < 5 {
		t.Fatalf("expected recorded ticks, got %d", len(ticks))
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Tick != ticks[i-1].Tick+1 {
			t.Fatalf("recorded ticks not contiguous at %d", i)
		}
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Surface = "hologram"
	if err := Run(context.Background(), cfg, Options{}); err == nil {
		t.Fatalf("expected invalid config error")
	}
}

func TestDiagnosticsReportsHistoryWindow(t *testing.T) {
	target := &fakeStepper{}
	loop := NewLoop(target, LoopConfig{}, LoopDeps{}, LoopHooks{})
	history := journal.New[Summary](journal.Config{Capacity: 2})
	for i := 0; i < 3; i++ {
		result := loop.Advance(time.Unix(int64(i), 0), 0.016)
		history.Record(result.Summary.Tick, result.Summary)
	}

	data, err := json.Marshal(diagnostics(loop, history))
	if err != nil {
		t.Fatalf("marshal diagnostics: %v", err)
	}
	var payload struct {
		Latest  Summary `json:"latest"`
		History struct {
			Size   int    `json:"size"`
			Oldest uint64 `json:"oldest"`
			Newest uint64 `json:"newest"`
		} `json:"history"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload.Latest.Tick != 3 || payload.History.Size != 2 || payload.History.Oldest != 2 || payload.History.Newest != 3 {
		t.Fatalf("unexpected diagnostics %s", data)
	}
}
