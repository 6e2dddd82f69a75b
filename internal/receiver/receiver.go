// Package receiver couples a persona field to a synthesis engine. Each Step
// derives a bounded control value from elapsed time, the engine's measured
// richness and the field's plasticity, pushes it to the engine, and folds the
// engine's response back into the field.
//
// A Receiver is not safe for concurrent use; the host serialises calls.
package receiver

import (
	"context"
	"fmt"
	"math/rand"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/A-ESxARG/receiver/internal/audio"
	"github.com/A-ESxARG/receiver/internal/field"
	"github.com/A-ESxARG/receiver/internal/random"
	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/internal/visual"
	"github.com/A-ESxARG/receiver/internal/wave"
	"github.com/A-ESxARG/receiver/logging"
	loggingreceiver "github.com/A-ESxARG/receiver/logging/receiver"
)

// DefaultName labels receivers constructed without a name.
const DefaultName = "receiver"

const tracerName = "github.com/A-ESxARG/receiver/internal/receiver"

const (
	metricTicks              = "receiver_ticks_total"
	metricSignals            = "receiver_signals_total"
	metricPresets            = "receiver_presets_total"
	metricVisualizerFailures = "receiver_visualizer_failures_total"
)

// Deps carries the receiver's ambient collaborators. Every field is optional.
type Deps struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
	// RNG drives the jitter walk. Defaults to a source derived from the seed.
	RNG    *rand.Rand
	Tracer trace.Tracer
}

// Config configures New.
type Config struct {
	Seed int64
	Name string
	// Audio is an existing output handle. When nil, AudioFactory is asked
	// for one; when both are nil the receiver runs headless.
	Audio        audio.Output
	AudioFactory audio.Factory
	Surface      visual.Surface
	// InitialPreset replaces the field-derived starting preset when set.
	InitialPreset *wave.Preset

	EngineFactory     EngineFactory
	VisualizerFactory VisualizerFactory

	Deps Deps
}

// TickOutput is the record returned by Step and Snapshot.
type TickOutput struct {
	Field field.State `json:"field"`
	Mode  field.Mode  `json:"mode"`
	Wave  *wave.State `json:"wave"`
}

// Receiver owns a field state and drives an optional engine and visualizer.
type Receiver struct {
	name   string
	field  field.State
	preset wave.Preset
	time   float64
	jitter float64
	value  float64
	tick   uint64

	out       audio.Output
	ownsAudio bool
	engine    *engineCaps
	vis       *visualizerCaps

	visualizerFactory VisualizerFactory

	rng       *rand.Rand
	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger
	tracer    trace.Tracer
}

// New builds a receiver. It never fails: a missing or broken audio path
// yields a headless receiver and a rejected surface yields no visualizer.
func New(cfg Config) *Receiver {
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	r := &Receiver{
		name:              name,
		field:             field.Init(cfg.Seed),
		visualizerFactory: cfg.VisualizerFactory,
		rng:               cfg.Deps.RNG,
		publisher:         cfg.Deps.Publisher,
		metrics:           cfg.Deps.Metrics,
		logger:            cfg.Deps.Logger,
		tracer:            cfg.Deps.Tracer,
	}
	if r.rng == nil {
		r.rng = random.NewDeterministicRNG(cfg.Seed, "receiver.jitter")
	}
	if r.publisher == nil {
		r.publisher = logging.NopPublisher()
	}
	if r.logger == nil {
		r.logger = telemetry.Discard()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	if r.visualizerFactory == nil {
		r.visualizerFactory = DefaultVisualizerFactory
	}

	r.bindEngine(cfg)

	if cfg.InitialPreset != nil {
		r.preset = clonePreset(*cfg.InitialPreset)
	} else {
		r.preset = field.ToWavePreset(r.field)
	}
	r.engine.apply(r.preset)

	if cfg.Surface != nil && r.engine != nil {
		r.AttachSurface(cfg.Surface)
	}
	return r
}

func (r *Receiver) bindEngine(cfg Config) {
	out := cfg.Audio
	if out == nil && cfg.AudioFactory != nil {
		created, err := cfg.AudioFactory()
		if err != nil {
			r.headless(fmt.Sprintf("audio factory: %v", err))
			return
		}
		out, r.ownsAudio = created, true
	}
	if out == nil {
		r.headless("no audio output available")
		return
	}
	r.out = out

	factory := cfg.EngineFactory
	if factory == nil {
		factory = DefaultEngineFactory
	}
	engine, err := factory(out)
	if err != nil || engine == nil {
		reason := "engine factory returned no engine"
		if err != nil {
			reason = fmt.Sprintf("engine factory: %v", err)
		}
		r.headless(reason)
		return
	}
	r.engine = probeEngine(engine)
}

func (r *Receiver) headless(reason string) {
	r.logger.Printf("[receiver] %s running headless: %s", r.name, reason)
	loggingreceiver.Headless(context.Background(), r.publisher, r.actor(), reason)
}

func (r *Receiver) actor() logging.EntityRef {
	return logging.EntityRef{ID: r.name, Kind: logging.EntityKindReceiver}
}

// AttachSurface builds a visualizer over surface, replacing and closing the
// current one. Failure leaves the receiver without a visualizer. Headless
// receivers ignore the call.
func (r *Receiver) AttachSurface(surface visual.Surface) {
	if r.engine == nil {
		return
	}
	r.detachVisualizer()

	vis, err := r.buildVisualizer(surface)
	if err != nil {
		r.logger.Printf("[receiver] %s visualizer attach failed: %v", r.name, err)
		if r.metrics != nil {
			r.metrics.Add(metricVisualizerFailures, 1)
		}
		loggingreceiver.VisualizerAttachFailed(context.Background(), r.publisher, r.actor(), r.tick, err.Error())
		return
	}
	r.vis = vis
	loggingreceiver.VisualizerAttached(context.Background(), r.publisher, r.actor(), r.tick)
}

func (r *Receiver) buildVisualizer(surface visual.Surface) (caps *visualizerCaps, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			caps, err = nil, fmt.Errorf("visualizer panic: %v", rec)
		}
	}()
	raw, err := r.visualizerFactory(surface)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, visual.ErrIncompatibleSurface
	}
	caps = probeVisualizer(raw)
	if caps.setSynth != nil {
		if src, ok := r.engine.raw.(visual.WeightSource); ok {
			caps.setSynth(src)
		}
	}
	if caps.start != nil {
		caps.start()
	}
	return caps, nil
}

func (r *Receiver) detachVisualizer() {
	if r.vis == nil {
		return
	}
	if r.vis.close != nil {
		if err := r.vis.close(); err != nil {
			r.logger.Printf("[receiver] %s close visualizer: %v", r.name, err)
		}
	}
	r.vis = nil
}

// Start resumes audio output. Headless receivers return nil.
func (r *Receiver) Start(ctx context.Context) error {
	if r.engine == nil {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "receiver.Start", trace.WithAttributes(attribute.String("receiver.name", r.name)))
	defer span.End()

	var err error
	switch {
	case r.engine.resume != nil:
		err = r.engine.resume(ctx)
	case r.output() != nil && r.output().State() == audio.StateSuspended:
		err = r.output().Resume(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		loggingreceiver.AudioError(ctx, r.publisher, r.actor(), r.tick, "start", err)
		return fmt.Errorf("start receiver %s: %w", r.name, err)
	}
	loggingreceiver.AudioStarted(ctx, r.publisher, r.actor(), r.tick, r.outputState())
	return nil
}

// Stop halts synthesis and suspends the audio output when it is running.
// Headless receivers return nil.
func (r *Receiver) Stop(ctx context.Context) error {
	if r.engine == nil {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "receiver.Stop", trace.WithAttributes(attribute.String("receiver.name", r.name)))
	defer span.End()

	if r.engine.stop != nil {
		r.engine.stop()
	}
	if out := r.output(); out != nil && out.State() == audio.StateRunning {
		if err := out.Suspend(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			loggingreceiver.AudioError(ctx, r.publisher, r.actor(), r.tick, "stop", err)
			return fmt.Errorf("stop receiver %s: %w", r.name, err)
		}
	}
	loggingreceiver.AudioStopped(ctx, r.publisher, r.actor(), r.tick, r.outputState())
	return nil
}

// Close releases the visualizer and any audio output the receiver opened
// itself.
func (r *Receiver) Close() error {
	r.detachVisualizer()
	if r.ownsAudio && r.out != nil {
		r.ownsAudio = false
		if err := r.out.Close(); err != nil {
			return fmt.Errorf("close audio: %w", err)
		}
	}
	return nil
}

func (r *Receiver) output() audio.Output {
	if r.engine != nil && r.engine.output != nil {
		if out := r.engine.output(); out != nil {
			return out
		}
	}
	return r.out
}

func (r *Receiver) outputState() string {
	if out := r.output(); out != nil {
		return string(out.State())
	}
	return ""
}

// SetPreset stores p and applies its present fields. A nil preset is ignored.
func (r *Receiver) SetPreset(p *wave.Preset) {
	if p == nil {
		return
	}
	r.preset = clonePreset(*p)
	r.applyPreset("preset")
}

// ApplySignal replaces the field with the signal's transform and applies the
// preset derived from it.
func (r *Receiver) ApplySignal(sig field.Signal) {
	before := r.field.Persona.Energy
	r.field = field.ApplySignal(r.field, sig)
	r.preset = field.ToWavePreset(r.field)
	r.applyPreset("signal")

	if r.metrics != nil {
		r.metrics.Add(metricSignals, 1)
	}
	loggingreceiver.SignalApplied(context.Background(), r.publisher, r.actor(), r.tick, loggingreceiver.SignalPayload{
		Signal:       string(sig.Type),
		Intensity:    sig.Intensity,
		EnergyBefore: before,
		EnergyAfter:  r.field.Persona.Energy,
		Phase:        string(r.field.Persona.Phase),
	})
}

func (r *Receiver) applyPreset(source string) {
	if r.engine == nil {
		return
	}
	r.engine.apply(r.preset)
	if r.metrics != nil {
		r.metrics.Add(metricPresets, 1)
	}
	loggingreceiver.PresetApplied(context.Background(), r.publisher, r.actor(), r.tick, loggingreceiver.PresetPayload{
		Source:     source,
		Delay:      r.preset.Delay,
		Entropy:    r.preset.Entropy,
		Refinement: r.preset.Refinement,
		Coupling:   r.preset.Coupling,
		Value:      r.preset.Value,
	})
}

func clonePreset(p wave.Preset) wave.Preset {
	clone := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		c := *v
		return &c
	}
	return wave.Preset{
		Delay:      clone(p.Delay),
		Entropy:    clone(p.Entropy),
		Refinement: clone(p.Refinement),
		Coupling:   clone(p.Coupling),
		Value:      clone(p.Value),
	}
}

func (r *Receiver) Name() string { return r.name }

// Field returns the current field state.
func (r *Receiver) Field() field.State { return r.field }

// Preset returns a copy of the current preset.
func (r *Receiver) Preset() wave.Preset { return clonePreset(r.preset) }

// Time is the accumulated step time in seconds.
func (r *Receiver) Time() float64 { return r.time }

// Jitter is the current value of the bounded random walk.
func (r *Receiver) Jitter() float64 { return r.jitter }

// Value is the control value pushed by the latest step.
func (r *Receiver) Value() float64 { return r.value }

// Ticks counts completed steps.
func (r *Receiver) Ticks() uint64 { return r.tick }

// Headless reports whether the receiver runs without an engine.
func (r *Receiver) Headless() bool { return r.engine == nil }

// Engine returns the bound engine, nil when headless.
func (r *Receiver) Engine() Engine {
	if r.engine == nil {
		return nil
	}
	return r.engine.raw
}

// Visualizer returns the attached visualizer, nil when none is attached.
func (r *Receiver) Visualizer() Visualizer {
	if r.vis == nil {
		return nil
	}
	return r.vis.raw
}

// Output returns the audio output the engine renders into.
func (r *Receiver) Output() audio.Output { return r.output() }
