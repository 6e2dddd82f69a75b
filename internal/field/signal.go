package field

import "strings"

// Kind discriminates field signals.
type Kind string

const (
	KindNoop    Kind = "noop"
	KindBurst   Kind = "burst"
	KindSilence Kind = "silence"
	KindNudge   Kind = "nudge"
	KindSettle  Kind = "settle"
)

// Kinds lists every signal kind ApplySignal acts on.
var Kinds = []Kind{KindNoop, KindBurst, KindSilence, KindNudge, KindSettle}

// Signal is an external stimulus. Intensity in (0,1] scales the effect; zero
// or non-finite intensities mean full strength.
type Signal struct {
	Type      Kind    `json:"type" jsonschema:"enum=noop,enum=burst,enum=silence,enum=nudge,enum=settle"`
	Intensity float64 `json:"intensity,omitempty" jsonschema:"minimum=0,maximum=1"`
}

// ParseKind normalises a textual kind. Unknown kinds map to noop.
func ParseKind(raw string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Kinds {
		if kind == known {
			return kind, true
		}
	}
	return KindNoop, false
}

func (sig Signal) intensity() float64 {
	i := finiteOr(sig.Intensity, 0)
	if i <= 0 {
		return 1
	}
	return clamp01(i)
}

// ApplySignal returns the field after sig. Noop and unknown kinds return s
// unchanged. Burst never lowers energy and silence never raises it.
func ApplySignal(s State, sig Signal) State {
	i := sig.intensity()
	next := s
	p := &next.Persona
	switch sig.Type {
	case KindBurst:
		p.Energy = clamp01(p.Energy + 0.25*i*(1-p.Energy))
		p.Plasticity = clamp01(p.Plasticity + 0.1*i*(1-p.Plasticity))
	case KindSilence:
		p.Energy = clamp01(p.Energy * (1 - 0.5*i))
		p.Plasticity = clamp01(p.Plasticity * (1 - 0.2*i))
	case KindNudge:
		p.Plasticity = clamp01(p.Plasticity + 0.2*i*(1-p.Plasticity))
	case KindSettle:
		p.Plasticity = clamp01(p.Plasticity - 0.2*i*p.Plasticity)
	default:
		return s
	}
	p.Phase = classify(*p)
	return next
}
