// Package field models the persona field: a slowly evolving internal state
// that is transformed by discrete signals and by observations of the
// synthesis output. Every function here is pure and returns a new State.
package field

import (
	"math"

	"github.com/A-ESxARG/receiver/internal/random"
	"github.com/A-ESxARG/receiver/internal/wave"
)

type Phase string

const (
	PhaseRut   Phase = "rut"
	PhaseSurge Phase = "surge"
	PhaseDrift Phase = "drift"
	PhaseStill Phase = "still"
)

const (
	initialEnergy     = 0.5
	initialPlasticity = 0.5

	surgeEnergy      = 0.75
	stillEnergy      = 0.25
	driftPlasticity  = 0.7
	resonanceRate    = 0.1
	absorptionRate   = 0.05
	plasticityRelax  = 0.02
	resonanceSeedMin = 0.25
	resonanceSeedMax = 0.75
)

// Persona is the part of the field that signals act on directly.
type Persona struct {
	Phase      Phase   `json:"phase"`
	Energy     float64 `json:"energy"`
	Plasticity float64 `json:"plasticity"`
}

// State is an immutable snapshot of the field. Callers replace it wholesale.
type State struct {
	Seed       int64   `json:"seed"`
	Generation uint64  `json:"generation"`
	Persona    Persona `json:"persona"`
	// Resonance is the smoothed memory of observed synthesis entropy.
	Resonance float64 `json:"resonance"`
}

// Mode is the read-only classification of a field used by hosts and logs.
type Mode struct {
	Band      string  `json:"band"`
	Phase     Phase   `json:"phase"`
	Intensity float64 `json:"intensity"`
}

// Observation summarises one tick of synthesis output.
type Observation struct {
	Entropy float64 `json:"entropy"`
}

// Init builds the starting field for seed. The persona always starts in a
// balanced rut; the seed only decides the initial resonance.
func Init(seed int64) State {
	rng := random.NewDeterministicRNG(seed, "field.resonance")
	persona := Persona{Energy: initialEnergy, Plasticity: initialPlasticity}
	persona.Phase = classify(persona)
	return State{
		Seed:      seed,
		Persona:   persona,
		Resonance: resonanceSeedMin + (resonanceSeedMax-resonanceSeedMin)*rng.Float64(),
	}
}

// ApplyObservation folds an observation into the field. Energy only absorbs
// excitation here; it is lowered exclusively by signals.
func ApplyObservation(s State, obs Observation) State {
	e := clamp01(finiteOr(obs.Entropy, 0))
	next := s
	next.Generation++

	surprise := e - s.Resonance
	next.Resonance = clamp01(s.Resonance + resonanceRate*surprise)

	if e > s.Persona.Energy {
		next.Persona.Energy = clamp01(s.Persona.Energy + absorptionRate*(e-s.Persona.Energy))
	}

	target := clamp01(0.5 + 0.5*surprise)
	next.Persona.Plasticity = clamp01(s.Persona.Plasticity + plasticityRelax*(target-s.Persona.Plasticity))
	next.Persona.Phase = classify(next.Persona)
	return next
}

// ToWavePreset translates the field into a complete engine preset.
func ToWavePreset(s State) wave.Preset {
	energy := clamp01(s.Persona.Energy)
	plasticity := clamp01(s.Persona.Plasticity)
	return wave.Preset{
		Delay:      wave.Float(0.15 + 0.6*(1-energy)),
		Entropy:    wave.Float(plasticity),
		Refinement: wave.Float(1 - 0.6*plasticity),
		Coupling:   wave.Float(energy),
		Value:      wave.Float(clamp01(s.Resonance)),
	}
}

// ToReceiverMode classifies the field into an energy band.
func ToReceiverMode(s State) Mode {
	energy := clamp01(s.Persona.Energy)
	band := "mid"
	switch {
	case energy < 1.0/3.0:
		band = "low"
	case energy >= 2.0/3.0:
		band = "high"
	}
	return Mode{Band: band, Phase: s.Persona.Phase, Intensity: energy}
}

func classify(p Persona) Phase {
	switch {
	case p.Energy >= surgeEnergy:
		return PhaseSurge
	case p.Energy <= stillEnergy:
		return PhaseStill
	case p.Plasticity >= driftPlasticity:
		return PhaseDrift
	default:
		return PhaseRut
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func finiteOr(x, fallback float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fallback
	}
	return x
}
