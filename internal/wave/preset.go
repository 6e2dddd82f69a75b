package wave

import (
	"encoding/json"
	"math"
)

// Preset is a partial set of engine parameters. A nil field, or one holding
// a non-finite number, leaves the corresponding engine parameter untouched.
type Preset struct {
	Delay      *float64 `json:"delay,omitempty" jsonschema:"description=Feedback delay amount,minimum=0,maximum=1"`
	Entropy    *float64 `json:"entropy,omitempty" jsonschema:"description=Blend toward the uniform table mix,minimum=0,maximum=1"`
	Refinement *float64 `json:"refinement,omitempty" jsonschema:"description=Cycle smoothing amount,minimum=0,maximum=1"`
	Coupling   *float64 `json:"coupling,omitempty" jsonschema:"description=Ring modulation depth between adjacent tables,minimum=0,maximum=1"`
	Value      *float64 `json:"value,omitempty" jsonschema:"description=Primary control value scanning the table bank,minimum=0,maximum=1"`
}

// Float returns a pointer to v for building presets inline.
func Float(v float64) *float64 {
	return &v
}

// Numeric reports the value behind p when it is present and finite.
func Numeric(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v := *p
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Empty reports whether no field of the preset would be applied.
func (p Preset) Empty() bool {
	for _, field := range []*float64{p.Delay, p.Entropy, p.Refinement, p.Coupling, p.Value} {
		if _, ok := Numeric(field); ok {
			return false
		}
	}
	return true
}

// UnmarshalJSON keeps numeric fields and silently drops fields of any other
// JSON type instead of failing the whole document.
func (p *Preset) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pick := func(key string) *float64 {
		msg, ok := raw[key]
		if !ok || string(msg) == "null" {
			return nil
		}
		var v float64
		if err := json.Unmarshal(msg, &v); err != nil {
			return nil
		}
		return &v
	}
	*p = Preset{
		Delay:      pick("delay"),
		Entropy:    pick("entropy"),
		Refinement: pick("refinement"),
		Coupling:   pick("coupling"),
		Value:      pick("value"),
	}
	return nil
}
