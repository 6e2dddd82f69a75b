package receiver

import (
	"context"
	"math"

	"github.com/A-ESxARG/receiver/internal/field"
	"github.com/A-ESxARG/receiver/internal/wave"
	loggingreceiver "github.com/A-ESxARG/receiver/logging/receiver"
)

// Control signal shaping.
const (
	DefaultDT = 0.016

	ValueCenter    = 0.5
	ValueAmplitude = 0.5
	ValueFreqBase  = 0.5

	JitterMax       = 0.1
	JitterDecay     = 0.98
	JitterStepBase  = 0.01
	JitterStepScale = 0.06

	defaultPlasticity = 0.5
	defaultRefinement = 0.5
)

// StepDefault advances the receiver by DefaultDT.
func (r *Receiver) StepDefault() TickOutput {
	return r.Step(DefaultDT)
}

// Step runs one tick of the feedback loop. Non-positive or non-finite dt is
// replaced by DefaultDT so time only moves forward.
func (r *Receiver) Step(dt float64) TickOutput {
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = DefaultDT
	}
	r.time += dt
	r.tick++

	mode := field.ToReceiverMode(r.field)

	entropy := 0.0
	if st := r.engine.readState(); st != nil {
		if v, ok := wave.Numeric(st.RichnessNorm); ok {
			entropy = clamp01(v)
		}
	}

	plasticity := defaultPlasticity
	if p := r.field.Persona.Plasticity; !math.IsNaN(p) && !math.IsInf(p, 0) {
		plasticity = clamp01(p)
	}

	step := (r.rng.Float64() - 0.5) * (JitterStepBase + JitterStepScale*plasticity)
	r.jitter = clampSym(r.jitter*JitterDecay+step, JitterMax)

	freq := ValueFreqBase * (0.5 + entropy)
	base := ValueCenter + ValueAmplitude*math.Sin(r.time*math.Pi*freq)
	r.value = clamp01(base + r.jitter)

	if r.engine != nil && r.engine.setValue != nil {
		r.engine.setValue(r.value)
	}
	post := r.engine.readState()

	if r.vis != nil {
		refinement := defaultRefinement
		if v, ok := wave.Numeric(r.preset.Refinement); ok {
			refinement = v
		}
		r.vis.push(entropy, refinement, plasticity)
	}

	observed := entropy
	if post != nil {
		if v, ok := wave.Numeric(post.RichnessNorm); ok {
			observed = v
		}
	}
	r.field = field.ApplyObservation(r.field, field.Observation{Entropy: observed})

	if r.metrics != nil {
		r.metrics.Add(metricTicks, 1)
	}
	loggingreceiver.Tick(context.Background(), r.publisher, r.actor(), r.tick, loggingreceiver.TickPayload{
		Time:       r.time,
		Value:      r.value,
		Jitter:     r.jitter,
		Entropy:    entropy,
		Plasticity: plasticity,
		Band:       mode.Band,
		Phase:      string(mode.Phase),
	})

	return TickOutput{Field: r.field, Mode: mode, Wave: post}
}

// Snapshot reports the current field, mode and engine state without
// advancing anything.
func (r *Receiver) Snapshot() TickOutput {
	return TickOutput{
		Field: r.field,
		Mode:  field.ToReceiverMode(r.field),
		Wave:  r.engine.readState(),
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func clampSym(x, m float64) float64 {
	return math.Max(-m, math.Min(m, x))
}
