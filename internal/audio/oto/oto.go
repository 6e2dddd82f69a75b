// Package oto drives an audio.Output through github.com/hajimehoshi/oto/v2.
package oto

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"github.com/A-ESxARG/receiver/internal/audio"
)

const bytesPerSample = 4

// Output streams the attached source through a single oto player. oto allows
// one context per process, so Open must not be called twice.
type Output struct {
	audio.Stage
	ctx        *oto.Context
	player     oto.Player
	sampleRate int

	mu      sync.Mutex
	started bool
}

// Open creates the oto context and waits for the device to become ready.
func Open(ctx context.Context, sampleRate int) (*Output, error) {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	otoCtx, ready, err := oto.NewContext(sampleRate, audio.DefaultChannels, oto.FormatFloat32LE)
	if err != nil {
		return nil, fmt.Errorf("%w: oto context: %v", audio.ErrUnavailable, err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	o := &Output{ctx: otoCtx, sampleRate: sampleRate}
	o.player = otoCtx.NewPlayer(&reader{stage: &o.Stage})
	if err := otoCtx.Suspend(); err != nil {
		return nil, fmt.Errorf("suspend oto context: %w", err)
	}
	return o, nil
}

// Factory adapts Open to audio.Factory.
func Factory(sampleRate int) audio.Factory {
	return func() (audio.Output, error) {
		return Open(context.Background(), sampleRate)
	}
}

func (o *Output) SampleRate() int { return o.sampleRate }

func (o *Output) Channels() int { return audio.DefaultChannels }

func (o *Output) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.State() == audio.StateClosed {
		return audio.ErrClosed
	}
	if err := o.ctx.Resume(); err != nil {
		return fmt.Errorf("resume oto context: %w", err)
	}
	if !o.started {
		o.player.Play()
		o.started = true
	}
	return o.Transition(audio.StateRunning)
}

func (o *Output) Suspend(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.State() == audio.StateClosed {
		return audio.ErrClosed
	}
	if err := o.ctx.Suspend(); err != nil {
		return fmt.Errorf("suspend oto context: %w", err)
	}
	return o.Transition(audio.StateSuspended)
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.State() == audio.StateClosed {
		return nil
	}
	if err := o.Transition(audio.StateClosed); err != nil {
		return err
	}
	return o.player.Close()
}

// reader converts rendered float32 frames into little-endian bytes.
type reader struct {
	stage   *audio.Stage
	scratch []float32
}

func (r *reader) Read(p []byte) (int, error) {
	samples := len(p) / bytesPerSample
	if samples == 0 {
		return 0, nil
	}
	samples -= samples % audio.DefaultChannels
	if samples == 0 {
		return 0, nil
	}
	if cap(r.scratch) < samples {
		r.scratch = make([]float32, samples)
	}
	buf := r.scratch[:samples]
	r.stage.Fill(buf)
	for i, v := range buf {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(v))
	}
	return samples * bytesPerSample, nil
}
