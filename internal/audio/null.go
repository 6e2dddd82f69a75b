package audio

import "context"

// Null is an output with no device behind it. Frames are produced only when
// the owner calls Pull, which makes it suitable for tests and offline
// rendering.
type Null struct {
	Stage
	sampleRate int
	channels   int

	resumes  int
	suspends int
}

// NewNull returns a suspended stereo output at sampleRate (DefaultSampleRate
// when non-positive).
func NewNull(sampleRate int) *Null {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Null{sampleRate: sampleRate, channels: DefaultChannels}
}

// NullFactory returns a Factory that always yields a fresh Null output.
func NullFactory(sampleRate int) Factory {
	return func() (Output, error) {
		return NewNull(sampleRate), nil
	}
}

func (n *Null) SampleRate() int { return n.sampleRate }

func (n *Null) Channels() int { return n.channels }

func (n *Null) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.Transition(StateRunning); err != nil {
		return err
	}
	n.resumes++
	return nil
}

func (n *Null) Suspend(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.Transition(StateSuspended); err != nil {
		return err
	}
	n.suspends++
	return nil
}

func (n *Null) Close() error {
	if n.State() == StateClosed {
		return nil
	}
	return n.Transition(StateClosed)
}

// Pull renders the given number of interleaved frames from the attached source.
func (n *Null) Pull(frames int) []float32 {
	if frames <= 0 {
		return nil
	}
	out := make([]float32, frames*n.channels)
	n.Fill(out)
	return out
}

// Transitions reports how many resume and suspend requests succeeded.
func (n *Null) Transitions() (resumes, suspends int) {
	return n.resumes, n.suspends
}
