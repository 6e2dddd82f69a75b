package field

import (
	"math"
	"testing"

	"github.com/A-ESxARG/receiver/internal/wave"
)

func TestInitStartsInBalancedRut(t *testing.T) {
	for _, seed := range []int64{0, 7, 42, -3, math.MaxInt64} {
		s := Init(seed)
		if s.Persona.Phase != PhaseRut {
			t.Fatalf("seed %d: expected rut, got %q", seed, s.Persona.Phase)
		}
		if s.Persona.Energy != 0.5 || s.Persona.Plasticity != 0.5 {
			t.Fatalf("seed %d: unexpected persona %+v", seed, s.Persona)
		}
		if s.Resonance < resonanceSeedMin || s.Resonance >= resonanceSeedMax {
			t.Fatalf("seed %d: resonance out of range: %f", seed, s.Resonance)
		}
		if s.Seed != seed || s.Generation != 0 {
			t.Fatalf("seed %d: unexpected bookkeeping %+v", seed, s)
		}
	}
}

func TestInitIsDeterministic(t *testing.T) {
	if Init(42) != Init(42) {
		t.Fatalf("expected identical fields for identical seeds")
	}
	if Init(42).Resonance == Init(43).Resonance {
		t.Fatalf("expected seeds to influence resonance")
	}
}

func TestApplySignalNoopLeavesStateUnchanged(t *testing.T) {
	s := ApplyObservation(Init(7), Observation{Entropy: 0.9})
	for _, sig := range []Signal{{Type: KindNoop}, {Type: "unknown"}, {}} {
		if got := ApplySignal(s, sig); got != s {
			t.Fatalf("signal %+v changed state: %+v -> %+v", sig, s, got)
		}
	}
}

func TestBurstNeverLowersEnergyAndSilenceNeverRaisesIt(t *testing.T) {
	s := Init(42)
	intensities := []float64{0, 0.1, 0.5, 1, 2, math.NaN(), -1}
	for step := 0; step < 40; step++ {
		for _, i := range intensities {
			burst := ApplySignal(s, Signal{Type: KindBurst, Intensity: i})
			if burst.Persona.Energy < s.Persona.Energy {
				t.Fatalf("burst lowered energy %f -> %f", s.Persona.Energy, burst.Persona.Energy)
			}
			silence := ApplySignal(s, Signal{Type: KindSilence, Intensity: i})
			if silence.Persona.Energy > s.Persona.Energy {
				t.Fatalf("silence raised energy %f -> %f", s.Persona.Energy, silence.Persona.Energy)
			}
		}
		if step%2 == 0 {
			s = ApplySignal(s, Signal{Type: KindBurst})
		} else {
			s = ApplySignal(s, Signal{Type: KindSilence, Intensity: 0.3})
		}
	}
}

func TestSignalsReclassifyPhase(t *testing.T) {
	s := Init(1)
	for i := 0; i < 10; i++ {
		s = ApplySignal(s, Signal{Type: KindBurst})
	}
	if s.Persona.Phase != PhaseSurge {
		t.Fatalf("expected surge after repeated bursts, got %q (energy %f)", s.Persona.Phase, s.Persona.Energy)
	}
	for i := 0; i < 10; i++ {
		s = ApplySignal(s, Signal{Type: KindSilence})
	}
	if s.Persona.Phase != PhaseStill {
		t.Fatalf("expected still after repeated silence, got %q", s.Persona.Phase)
	}

	d := Init(1)
	for i := 0; i < 10; i++ {
		d = ApplySignal(d, Signal{Type: KindNudge})
	}
	if d.Persona.Phase != PhaseDrift {
		t.Fatalf("expected drift after nudges, got %q (plasticity %f)", d.Persona.Phase, d.Persona.Plasticity)
	}
	settled := ApplySignal(d, Signal{Type: KindSettle})
	if settled.Persona.Plasticity >= d.Persona.Plasticity {
		t.Fatalf("expected settle to lower plasticity")
	}
}

func TestApplyObservationNeverLowersEnergy(t *testing.T) {
	s := Init(42)
	for i, e := range []float64{0, 1, 0.2, math.NaN(), -4, 9, 0.7, 0} {
		next := ApplyObservation(s, Observation{Entropy: e})
		if next.Persona.Energy < s.Persona.Energy {
			t.Fatalf("observation %d lowered energy %f -> %f", i, s.Persona.Energy, next.Persona.Energy)
		}
		if next.Generation != s.Generation+1 {
			t.Fatalf("expected generation to advance")
		}
		if next.Resonance < 0 || next.Resonance > 1 || next.Persona.Plasticity < 0 || next.Persona.Plasticity > 1 {
			t.Fatalf("observation %d left field out of range: %+v", i, next)
		}
		s = next
	}
}

func TestApplyObservationTracksEntropy(t *testing.T) {
	s := Init(3)
	for i := 0; i < 200; i++ {
		s = ApplyObservation(s, Observation{Entropy: 0.9})
	}
	if math.Abs(s.Resonance-0.9) > 1e-3 {
		t.Fatalf("expected resonance to converge on 0.9, got %f", s.Resonance)
	}
	if s.Persona.Energy <= 0.5 {
		t.Fatalf("expected sustained entropy to excite energy, got %f", s.Persona.Energy)
	}
}

func TestToWavePresetCoversEveryParameter(t *testing.T) {
	p := ToWavePreset(Init(42))
	for name, ptr := range map[string]*float64{
		"delay":      p.Delay,
		"entropy":    p.Entropy,
		"refinement": p.Refinement,
		"coupling":   p.Coupling,
		"value":      p.Value,
	} {
		v, ok := wave.Numeric(ptr)
		if !ok {
			t.Fatalf("%s missing from preset", name)
		}
		if v < 0 || v > 1 {
			t.Fatalf("%s out of range: %f", name, v)
		}
	}
	if *p.Entropy != 0.5 || *p.Coupling != 0.5 {
		t.Fatalf("unexpected persona mapping: entropy=%f coupling=%f", *p.Entropy, *p.Coupling)
	}
}

func TestToReceiverModeBands(t *testing.T) {
	cases := []struct {
		energy float64
		band   string
	}{
		{0, "low"},
		{0.2, "low"},
		{0.5, "mid"},
		{0.7, "high"},
		{1, "high"},
	}
	for _, tc := range cases {
		s := Init(0)
		s.Persona.Energy = tc.energy
		mode := ToReceiverMode(s)
		if mode.Band != tc.band {
			t.Fatalf("energy %f: band %q, want %q", tc.energy, mode.Band, tc.band)
		}
		if mode.Intensity != tc.energy {
			t.Fatalf("energy %f: intensity %f", tc.energy, mode.Intensity)
		}
	}
}

func TestParseKind(t *testing.T) {
	if kind, ok := ParseKind(" Burst "); !ok || kind != KindBurst {
		t.Fatalf("expected burst, got %q %v", kind, ok)
	}
	if kind, ok := ParseKind("shout"); ok || kind != KindNoop {
		t.Fatalf("expected unknown kind to map to noop, got %q %v", kind, ok)
	}
}
