package telemetry

import (
	"bytes"
	"log"
	"testing"

	"github.com/A-ESxARG/receiver/logging"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
		if StandardLogger(logger) != base {
			t.Fatalf("expected wrapped logger to be exposed")
		}
	})

	t.Run("falls back to default", func(t *testing.T) {
		if StandardLogger(Discard()) != log.Default() {
			t.Fatalf("expected log.Default for loggers without a standard logger")
		}
	})
}

func TestWrapMetrics(t *testing.T) {
	metrics := logging.Metrics{}
	adapter := WrapMetrics(&metrics)

	adapter.Add("receiver_ticks_total", 2)
	adapter.Store("receiver_ticks_total", 5)
	adapter.Add("receiver_ticks_total", 3)

	snapshot := metrics.Snapshot()
	if got := snapshot["receiver_ticks_total"]; got != 8 {
		t.Fatalf("unexpected metric value: %d", got)
	}

	// Ensure nil metrics do not panic.
	var nilAdapter Metrics = WrapMetrics(nil)
	nilAdapter.Add("ignored", 1)
	nilAdapter.Store("ignored", 1)
}
