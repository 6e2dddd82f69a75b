// Package control carries operator commands from network goroutines to the
// goroutine that owns the receiver.
package control

import (
	"github.com/A-ESxARG/receiver/internal/field"
	"github.com/A-ESxARG/receiver/internal/wave"
)

// Kind enumerates command payloads.
type Kind string

const (
	KindSignal Kind = "signal"
	KindPreset Kind = "preset"
)

// Command is one queued operator request. Exactly one payload pointer is set
// for its Kind.
type Command struct {
	Kind   Kind
	Origin string
	Signal *field.Signal
	Preset *wave.Preset
}

// Applier is the subset of the receiver a command acts on.
type Applier interface {
	ApplySignal(field.Signal)
	SetPreset(*wave.Preset)
}

// Apply runs cmd against target and reports whether it carried a usable
// payload.
func Apply(target Applier, cmd Command) bool {
	switch cmd.Kind {
	case KindSignal:
		if cmd.Signal == nil {
			return false
		}
		target.ApplySignal(*cmd.Signal)
		return true
	case KindPreset:
		if cmd.Preset == nil {
			return false
		}
		target.SetPreset(cmd.Preset)
		return true
	default:
		return false
	}
}
