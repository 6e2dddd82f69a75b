package receiver

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/A-ESxARG/receiver/logging"
)

const (
	// EventTick is emitted once per receiver step with the control signal that was pushed.
	EventTick logging.EventType = "receiver.tick"
	// EventSignalApplied is emitted after a field signal replaced the field state.
	EventSignalApplied logging.EventType = "receiver.signal_applied"
	// EventPresetApplied is emitted when a preset is pushed onto the engine.
	EventPresetApplied logging.EventType = "receiver.preset_applied"
	// EventHeadless is emitted when the receiver runs without a synthesis engine.
	EventHeadless logging.EventType = "receiver.headless"
	// EventVisualizerAttached is emitted when a rendering surface produced a visualizer.
	EventVisualizerAttached logging.EventType = "receiver.visualizer_attached"
	// EventVisualizerAttachFailed is emitted when a rendering surface was rejected.
	EventVisualizerAttachFailed logging.EventType = "receiver.visualizer_attach_failed"
	// EventAudioStarted is emitted after the audio output resumed.
	EventAudioStarted logging.EventType = "receiver.audio_started"
	// EventAudioStopped is emitted after synthesis halted and the output suspended.
	EventAudioStopped logging.EventType = "receiver.audio_stopped"
	// EventAudioError is emitted when the audio output refused a lifecycle request.
	EventAudioError logging.EventType = "receiver.audio_error"
)

const category = logging.CategoryControl

// TickPayload captures the control values of a single step.
type TickPayload struct {
	Time       float64 `json:"time"`
	Value      float64 `json:"value"`
	Jitter     float64 `json:"jitter"`
	Entropy    float64 `json:"entropy"`
	Plasticity float64 `json:"plasticity"`
	Band       string  `json:"band"`
	Phase      string  `json:"phase"`
}

// Tick publishes the per-step debug record.
func Tick(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, tick uint64, payload TickPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventTick,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: category,
		Payload:  payload,
	})
}

// SignalPayload records how a signal moved the persona energy.
type SignalPayload struct {
	Signal       string  `json:"signal"`
	Intensity    float64 `json:"intensity"`
	EnergyBefore float64 `json:"energyBefore"`
	EnergyAfter  float64 `json:"energyAfter"`
	Phase        string  `json:"phase"`
}

func SignalApplied(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, tick uint64, payload SignalPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSignalApplied,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: category,
		Payload:  payload,
	})
}

// PresetPayload lists the preset fields that were present. Absent fields are nil.
type PresetPayload struct {
	Source     string   `json:"source"`
	Delay      *float64 `json:"delay,omitempty"`
	Entropy    *float64 `json:"entropy,omitempty"`
	Refinement *float64 `json:"refinement,omitempty"`
	Coupling   *float64 `json:"coupling,omitempty"`
	Value      *float64 `json:"value,omitempty"`
}

func PresetApplied(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, tick uint64, payload PresetPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPresetApplied,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: category,
		Payload:  payload,
	})
}

// ReasonPayload carries a human readable explanation.
type ReasonPayload struct {
	Reason string `json:"reason"`
}

func Headless(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, reason string) {
	publish(ctx, pub, logging.Event{
		Type:     EventHeadless,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryAudio,
		Payload:  ReasonPayload{Reason: reason},
	})
}

func VisualizerAttached(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, tick uint64) {
	publish(ctx, pub, logging.Event{
		Type:     EventVisualizerAttached,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{{Kind: logging.EntityKindVisualizer}},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryVisual,
	})
}

func VisualizerAttachFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, tick uint64, reason string) {
	publish(ctx, pub, logging.Event{
		Type:     EventVisualizerAttachFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryVisual,
		Payload:  ReasonPayload{Reason: reason},
	})
}

// AudioPayload describes a lifecycle transition of the audio output.
type AudioPayload struct {
	Operation string `json:"operation"`
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`
}

func AudioStarted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, tick uint64, state string) {
	publish(ctx, pub, logging.Event{
		Type:     EventAudioStarted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryAudio,
		Payload:  AudioPayload{Operation: "start", State: state},
	})
}

func AudioStopped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, tick uint64, state string) {
	publish(ctx, pub, logging.Event{
		Type:     EventAudioStopped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryAudio,
		Payload:  AudioPayload{Operation: "stop", State: state},
	})
}

func AudioError(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, tick uint64, operation string, err error) {
	payload := AudioPayload{Operation: operation}
	if err != nil {
		payload.Error = err.Error()
	}
	publish(ctx, pub, logging.Event{
		Type:     EventAudioError,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategoryAudio,
		Payload:  payload,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		event.TraceID = sc.TraceID().String()
	}
	pub.Publish(ctx, event)
}
