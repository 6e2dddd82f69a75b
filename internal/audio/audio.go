// Package audio defines the output device contract shared by the synthesis
// engine and the host, plus a device-free implementation.
package audio

import (
	"context"
	"errors"
	"sync"
)

// State mirrors the lifecycle of an output device.
type State string

const (
	StateSuspended State = "suspended"
	StateRunning   State = "running"
	StateClosed    State = "closed"
)

const (
	DefaultSampleRate      = 48000
	DefaultChannels        = 2
	DefaultFramesPerBuffer = 512
)

var (
	// ErrUnavailable reports that no audio backend could be opened.
	ErrUnavailable = errors.New("audio output unavailable")
	// ErrClosed reports a lifecycle request against a closed output.
	ErrClosed = errors.New("audio output closed")
)

// Source renders interleaved frames into out. It is called from the device
// goroutine.
type Source interface {
	Render(out []float32)
}

// Output is an audio device handle. New outputs start suspended.
type Output interface {
	SampleRate() int
	Channels() int
	State() State
	Attach(src Source)
	Resume(ctx context.Context) error
	Suspend(ctx context.Context) error
	Close() error
}

// Factory opens an output on demand. It stands in for probing the host for
// an audio capability.
type Factory func() (Output, error)

// Stage holds the attached source and lifecycle state for backends.
type Stage struct {
	mu     sync.RWMutex
	src    Source
	state  State
	closed bool
}

// Attach replaces the rendered source.
func (s *Stage) Attach(src Source) {
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
}

// State reports the lifecycle state, defaulting to suspended.
func (s *Stage) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return StateClosed
	}
	if s.state == "" {
		return StateSuspended
	}
	return s.state
}

// Transition records a new state unless the stage is closed.
func (s *Stage) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if next == StateClosed {
		s.closed = true
	}
	s.state = next
	return nil
}

// Fill renders the attached source into out when running and writes
// silence otherwise.
func (s *Stage) Fill(out []float32) {
	s.mu.RLock()
	src, running := s.src, s.state == StateRunning && !s.closed
	s.mu.RUnlock()
	if src == nil || !running {
		for i := range out {
			out[i] = 0
		}
		return
	}
	src.Render(out)
}
