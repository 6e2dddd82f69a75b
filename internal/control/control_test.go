package control

import (
	"testing"

	"github.com/A-ESxARG/receiver/internal/field"
	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/internal/wave"
	"github.com/A-ESxARG/receiver/logging"
)

func TestBufferWraparound(t *testing.T) {
	buffer := NewBuffer(3, nil)
	for _, origin := range []string{"a", "b", "c"} {
		if !buffer.Push(Command{Origin: origin}) {
			t.Fatalf("expected push to succeed for %s", origin)
		}
	}
	if buffer.Push(Command{Origin: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != 3 || drained[0].Origin != "a" || drained[2].Origin != "c" {
		t.Fatalf("unexpected drain %+v", drained)
	}
	for _, origin := range []string{"d", "e"} {
		buffer.Push(Command{Origin: origin})
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 || wrapped[0].Origin != "d" || wrapped[1].Origin != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
	if buffer.Drain() != nil || buffer.Len() != 0 {
		t.Fatalf("expected empty buffer")
	}
}

func TestBufferRecordsMetrics(t *testing.T) {
	metrics := &logging.Metrics{}
	buffer := NewBuffer(0, telemetry.WrapMetrics(metrics))
	if buffer.Capacity() != 1 {
		t.Fatalf("expected capacity clamped to 1, got %d", buffer.Capacity())
	}
	buffer.Push(Command{})
	buffer.Push(Command{})
	snap := metrics.Snapshot()
	if snap[bufferOverflowMetricKey] != 1 || snap[bufferOccupancyMetricKey] != 1 {
		t.Fatalf("unexpected metrics %v", snap)
	}
}

type recordingApplier struct {
	signals []field.Signal
	presets []*wave.Preset
}

func (r *recordingApplier) ApplySignal(s field.Signal) { r.signals = append(r.signals, s) }
func (r *recordingApplier) SetPreset(p *wave.Preset)   { r.presets = append(r.presets, p) }

func TestApplyDispatchesByKind(t *testing.T) {
	target := &recordingApplier{}
	if !Apply(target, Command{Kind: KindSignal, Signal: &field.Signal{Type: field.KindBurst}}) {
		t.Fatalf("expected signal applied")
	}
	if !Apply(target, Command{Kind: KindPreset, Preset: &wave.Preset{Delay: wave.Float(0.2)}}) {
		t.Fatalf("expected preset applied")
	}
	if Apply(target, Command{Kind: KindSignal}) || Apply(target, Command{Kind: "shout"}) {
		t.Fatalf("expected empty or unknown commands to be rejected")
	}
	if len(target.signals) != 1 || len(target.presets) != 1 {
		t.Fatalf("unexpected dispatch %+v", target)
	}
}
