package receiver

import (
	"context"

	"github.com/A-ESxARG/receiver/internal/audio"
	"github.com/A-ESxARG/receiver/internal/visual"
	"github.com/A-ESxARG/receiver/internal/wave"
)

// Engine is a synthesis engine. Every method the receiver uses is optional
// and discovered once when the engine is bound.
type Engine any

// Visualizer is a rendering collaborator with optional methods, discovered
// once when a surface is attached.
type Visualizer any

// EngineFactory builds an engine over an audio output.
type EngineFactory func(out audio.Output) (Engine, error)

// VisualizerFactory builds a visualizer over a rendering surface.
type VisualizerFactory func(surface visual.Surface) (Visualizer, error)

// DefaultEngineFactory builds the wavetable synth.
func DefaultEngineFactory(out audio.Output) (Engine, error) {
	return wave.New(out), nil
}

// DefaultVisualizerFactory builds the column visualizer.
func DefaultVisualizerFactory(surface visual.Surface) (Visualizer, error) {
	v, err := visual.New(surface)
	if err != nil {
		return nil, err
	}
	return v, nil
}

type engineCaps struct {
	raw Engine

	setDelay      func(float64)
	setEntropy    func(float64)
	setRefinement func(float64)
	setCoupling   func(float64)
	setValue      func(float64)
	state         func() wave.State
	resume        func(context.Context) error
	stop          func()
	output        func() audio.Output
}

func probeEngine(e Engine) *engineCaps {
	if e == nil {
		return nil
	}
	caps := &engineCaps{raw: e}
	if v, ok := e.(interface{ SetDelay(float64) }); ok {
		caps.setDelay = v.SetDelay
	}
	if v, ok := e.(interface{ SetEntropy(float64) }); ok {
		caps.setEntropy = v.SetEntropy
	}
	if v, ok := e.(interface{ SetRefinement(float64) }); ok {
		caps.setRefinement = v.SetRefinement
	}
	if v, ok := e.(interface{ SetCoupling(float64) }); ok {
		caps.setCoupling = v.SetCoupling
	}
	if v, ok := e.(interface{ SetValue(float64) }); ok {
		caps.setValue = v.SetValue
	}
	if v, ok := e.(interface{ State() wave.State }); ok {
		caps.state = v.State
	}
	if v, ok := e.(interface{ Resume(context.Context) error }); ok {
		caps.resume = v.Resume
	}
	if v, ok := e.(interface{ Stop() }); ok {
		caps.stop = v.Stop
	}
	if v, ok := e.(interface{ Output() audio.Output }); ok {
		caps.output = v.Output
	}
	return caps
}

func (c *engineCaps) readState() *wave.State {
	if c == nil || c.state == nil {
		return nil
	}
	st := c.state()
	return &st
}

// apply pushes every present, finite preset field to its setter.
func (c *engineCaps) apply(p wave.Preset) {
	if c == nil {
		return
	}
	for _, pair := range []struct {
		value *float64
		set   func(float64)
	}{
		{p.Delay, c.setDelay},
		{p.Entropy, c.setEntropy},
		{p.Refinement, c.setRefinement},
		{p.Coupling, c.setCoupling},
		{p.Value, c.setValue},
	} {
		if pair.set == nil {
			continue
		}
		if v, ok := wave.Numeric(pair.value); ok {
			pair.set(v)
		}
	}
}

type visualizerCaps struct {
	raw Visualizer

	setSynth      func(visual.WeightSource)
	start         func()
	setEntropy    func(float64)
	setRefinement func(float64)
	setSmear      func(float64)
	close         func() error
}

func probeVisualizer(v Visualizer) *visualizerCaps {
	if v == nil {
		return nil
	}
	caps := &visualizerCaps{raw: v}
	if x, ok := v.(interface{ SetSynth(visual.WeightSource) }); ok {
		caps.setSynth = x.SetSynth
	}
	if x, ok := v.(interface{ Start() }); ok {
		caps.start = x.Start
	}
	if x, ok := v.(interface{ SetEntropy(float64) }); ok {
		caps.setEntropy = x.SetEntropy
	}
	if x, ok := v.(interface{ SetRefinement(float64) }); ok {
		caps.setRefinement = x.SetRefinement
	}
	if x, ok := v.(interface{ SetSmear(float64) }); ok {
		caps.setSmear = x.SetSmear
	}
	if x, ok := v.(interface{ Close() error }); ok {
		caps.close = x.Close
	}
	return caps
}

func (c *visualizerCaps) push(entropy, refinement, smear float64) {
	if c == nil {
		return
	}
	if c.setEntropy != nil {
		c.setEntropy(entropy)
	}
	if c.setRefinement != nil {
		c.setRefinement(refinement)
	}
	if c.setSmear != nil {
		c.setSmear(smear)
	}
}
