package receiver

import (
	"context"
	"errors"

	"github.com/A-ESxARG/receiver/internal/audio"
	"github.com/A-ESxARG/receiver/internal/visual"
	"github.com/A-ESxARG/receiver/internal/wave"
)

// fakeEngine implements every engine capability and records what it saw.
type fakeEngine struct {
	params    wave.Params
	values    []float64
	richness  func(value float64) *float64
	resumeErr error
	resumed   int
	stopped   int
	out       audio.Output
}

func (e *fakeEngine) SetDelay(v float64)      { e.params.Delay = v }
func (e *fakeEngine) SetEntropy(v float64)    { e.params.Entropy = v }
func (e *fakeEngine) SetRefinement(v float64) { e.params.Refinement = v }
func (e *fakeEngine) SetCoupling(v float64)   { e.params.Coupling = v }

func (e *fakeEngine) SetValue(v float64) {
	e.params.Value = v
	e.values = append(e.values, v)
}

func (e *fakeEngine) State() wave.State {
	st := wave.State{Value: e.params.Value}
	if e.richness != nil {
		st.RichnessNorm = e.richness(e.params.Value)
	}
	return st
}

func (e *fakeEngine) Resume(ctx context.Context) error {
	if e.resumeErr != nil {
		return e.resumeErr
	}
	e.resumed++
	if e.out != nil {
		return e.out.Resume(ctx)
	}
	return nil
}

func (e *fakeEngine) Stop() { e.stopped++ }

func (e *fakeEngine) Output() audio.Output { return e.out }

func (e *fakeEngine) Weights() []float64 { return []float64{1, 0, 0, 0} }

// valueOnlyEngine exposes nothing but the control value setter.
type valueOnlyEngine struct {
	values []float64
}

func (e *valueOnlyEngine) SetValue(v float64) { e.values = append(e.values, v) }

// stateOnlyEngine can be observed but not driven.
type stateOnlyEngine struct {
	richness float64
}

func (e stateOnlyEngine) State() wave.State {
	r := e.richness
	return wave.State{RichnessNorm: &r}
}

func engineFactory(e Engine) EngineFactory {
	return func(audio.Output) (Engine, error) { return e, nil }
}

// fakeVisualizer records pushed scalars.
type fakeVisualizer struct {
	synth      visual.WeightSource
	started    int
	closed     int
	entropy    []float64
	refinement []float64
	smear      []float64
}

func (v *fakeVisualizer) SetSynth(src visual.WeightSource) { v.synth = src }
func (v *fakeVisualizer) Start()                           { v.started++ }
func (v *fakeVisualizer) SetEntropy(x float64)             { v.entropy = append(v.entropy, x) }
func (v *fakeVisualizer) SetRefinement(x float64)          { v.refinement = append(v.refinement, x) }
func (v *fakeVisualizer) SetSmear(x float64)               { v.smear = append(v.smear, x) }

func (v *fakeVisualizer) Close() error {
	v.closed++
	return nil
}

type surfaceStub struct {
	w, h int
}

func (s surfaceStub) Bounds() (int, int)         { return s.w, s.h }
func (s surfaceStub) Present(visual.Frame) error { return nil }

// extremeSource alternates between the smallest and largest Float64 draws.
type extremeSource struct {
	n int
}

func (s *extremeSource) Int63() int64 {
	s.n++
	if s.n%2 == 0 {
		return 0
	}
	return 1<<63 - 1<<10
}

func (s *extremeSource) Seed(int64) {}

// highSource always yields the largest Float64 draw.
type highSource struct{}

func (highSource) Int63() int64 { return 1<<63 - 1<<10 }
func (highSource) Seed(int64)   {}

var errDevice = errors.New("device busy")

func ptr(v float64) *float64 { return &v }
