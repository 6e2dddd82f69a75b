// Package portaudio drives an audio.Output through the PortAudio default
// output device.
package portaudio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/A-ESxARG/receiver/internal/audio"
)

// Config selects the stream format.
type Config struct {
	SampleRate      int
	FramesPerBuffer int
}

// Output is a stereo float32 callback stream on the default device.
type Output struct {
	audio.Stage
	stream     *pa.Stream
	sampleRate int
	device     string

	mu sync.Mutex
}

// Open initialises PortAudio and opens a suspended stream. The stream is
// started by Resume.
func Open(cfg Config) (*Output, error) {
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = audio.DefaultFramesPerBuffer
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", audio.ErrUnavailable, err)
	}
	device, err := pa.DefaultOutputDevice()
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("%w: default output device: %v", audio.ErrUnavailable, err)
	}
	o := &Output{sampleRate: sampleRate, device: device.Name}
	stream, err := pa.OpenDefaultStream(0, audio.DefaultChannels, float64(sampleRate), frames, o.process)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("%w: open stream: %v", audio.ErrUnavailable, err)
	}
	o.stream = stream
	return o, nil
}

// Factory adapts Open to audio.Factory.
func Factory(cfg Config) audio.Factory {
	return func() (audio.Output, error) {
		return Open(cfg)
	}
}

// Describe reports the library version and device name.
func (o *Output) Describe() string {
	return fmt.Sprintf("%s on %s", strings.Split(pa.VersionText(), ",")[0], o.device)
}

func (o *Output) process(out []float32) {
	o.Fill(out)
}

func (o *Output) SampleRate() int { return o.sampleRate }

func (o *Output) Channels() int { return audio.DefaultChannels }

func (o *Output) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.State() {
	case audio.StateClosed:
		return audio.ErrClosed
	case audio.StateRunning:
		return nil
	}
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	return o.Transition(audio.StateRunning)
}

func (o *Output) Suspend(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.State() {
	case audio.StateClosed:
		return audio.ErrClosed
	case audio.StateSuspended:
		return nil
	}
	if err := o.stream.Stop(); err != nil {
		return fmt.Errorf("stop stream: %w", err)
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
	closeErr := o.stream.Close()
	if err := pa.Terminate(); err != nil && closeErr == nil {
		closeErr = fmt.Errorf("terminate portaudio: %w", err)
	}
	return closeErr
}
