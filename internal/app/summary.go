package app

import (
	"github.com/A-ESxARG/receiver/internal/net/proto"
	"github.com/A-ESxARG/receiver/internal/receiver"
	"github.com/A-ESxARG/receiver/internal/recording"
	"github.com/A-ESxARG/receiver/internal/wave"
)

// Summary is the host-level digest of one step, shared by diagnostics,
// viewers and the recorder.
type Summary struct {
	Tick       uint64   `json:"tick"`
	Time       float64  `json:"time"`
	Value      float64  `json:"value"`
	Jitter     float64  `json:"jitter"`
	Band       string   `json:"band"`
	Phase      string   `json:"phase"`
	Energy     float64  `json:"energy"`
	Plasticity float64  `json:"plasticity"`
	Resonance  float64  `json:"resonance"`
	Richness   *float64 `json:"richness,omitempty"`
	Dominant   string   `json:"dominant,omitempty"`
	Headless   bool     `json:"headless"`
}

// Summarize digests the step output out produced by s.
func Summarize(s Stepper, out receiver.TickOutput) Summary {
	summary := Summary{
		Tick:       s.Ticks(),
		Time:       s.Time(),
		Value:      s.Value(),
		Jitter:     s.Jitter(),
		Band:       out.Mode.Band,
		Phase:      string(out.Mode.Phase),
		Energy:     out.Field.Persona.Energy,
		Plasticity: out.Field.Persona.Plasticity,
		Resonance:  out.Field.Resonance,
		Headless:   out.Wave == nil,
	}
	if out.Wave != nil {
		if v, ok := wave.Numeric(out.Wave.RichnessNorm); ok {
			summary.Richness = &v
		}
		summary.Dominant = out.Wave.Dominant.ID
	}
	return summary
}

// ProtoTick is the viewer message for s.
func (s Summary) ProtoTick() proto.Tick {
	return proto.Tick{
		Tick:       s.Tick,
		Time:       s.Time,
		Value:      s.Value,
		Band:       s.Band,
		Phase:      s.Phase,
		Energy:     s.Energy,
		Plasticity: s.Plasticity,
		Richness:   s.Richness,
		Dominant:   s.Dominant,
	}
}

// RecordingTick is the persisted row for s. Entropy is the measured
// richness, or zero when the engine reported none.
func (s Summary) RecordingTick() recording.Tick {
	entropy := 0.0
	if s.Richness != nil {
		entropy = *s.Richness
	}
	return recording.Tick{
		Tick:     s.Tick,
		Time:     s.Time,
		Value:    s.Value,
		Entropy:  entropy,
		Energy:   s.Energy,
		Phase:    s.Phase,
		Band:     s.Band,
		Richness: s.Richness,
	}
}
