// Package visual renders the engine's table weights and the receiver's
// derived scalars into frames for a Surface.
package visual

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/A-ESxARG/receiver/internal/telemetry"
)

// DefaultFrameRate is the presentation rate used when Config leaves it unset.
const DefaultFrameRate = 30

// ErrIncompatibleSurface reports a surface that cannot be drawn on.
var ErrIncompatibleSurface = errors.New("visual: incompatible surface")

// Surface is anything frames can be presented to.
type Surface interface {
	Bounds() (width, height int)
	Present(Frame) error
}

// WeightSource supplies the table weights drawn as the base profile.
type WeightSource interface {
	Weights() []float64
}

// Frame is one rendered picture.
type Frame struct {
	Seq        uint64    `json:"seq"`
	Entropy    float64   `json:"entropy"`
	Refinement float64   `json:"refinement"`
	Smear      float64   `json:"smear"`
	Weights    []float64 `json:"weights,omitempty"`
	Columns    []float64 `json:"columns"`
	Height     int       `json:"height"`
}

// Config tunes presentation.
type Config struct {
	FrameRate int
	Metrics   telemetry.Metrics
}

// Visualizer owns a frame goroutine once started. Setters may be called from
// any goroutine.
type Visualizer struct {
	surface Surface
	config  Config

	mu         sync.Mutex
	source     WeightSource
	entropy    float64
	refinement float64
	smear      float64
	columns    []float64
	seq        uint64
	lastErr    error

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New binds a visualizer to surface with the default frame rate.
func New(surface Surface) (*Visualizer, error) {
	return NewWithConfig(surface, Config{})
}

// NewWithConfig binds a visualizer to surface. Surfaces that are nil or
// report an empty area are rejected with ErrIncompatibleSurface.
func NewWithConfig(surface Surface, cfg Config) (*Visualizer, error) {
	if surface == nil {
		return nil, ErrIncompatibleSurface
	}
	if w, h := surface.Bounds(); w <= 0 || h <= 0 {
		return nil, ErrIncompatibleSurface
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	return &Visualizer{
		surface:    surface,
		config:     cfg,
		refinement: 0.5,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

func (v *Visualizer) SetSynth(src WeightSource) {
	v.mu.Lock()
	v.source = src
	v.mu.Unlock()
}

func (v *Visualizer) SetEntropy(x float64)    { v.setScalar(&v.entropy, x) }
func (v *Visualizer) SetRefinement(x float64) { v.setScalar(&v.refinement, x) }
func (v *Visualizer) SetSmear(x float64)      { v.setScalar(&v.smear, x) }

func (v *Visualizer) setScalar(field *float64, x float64) {
	if math.IsNaN(x) {
		return
	}
	v.mu.Lock()
	*field = math.Max(0, math.Min(1, x))
	v.mu.Unlock()
}

// Start launches the frame goroutine. Calling it again has no effect.
func (v *Visualizer) Start() {
	v.startOnce.Do(func() {
		go v.run()
	})
}

func (v *Visualizer) run() {
	defer close(v.done)
	ticker := time.NewTicker(time.Second / time.Duration(v.config.FrameRate))
	defer ticker.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			_ = v.Present()
		}
	}
}

// Present renders one frame and hands it to the surface.
func (v *Visualizer) Present() error {
	frame := v.Render()
	if err := v.surface.Present(frame); err != nil {
		v.mu.Lock()
		v.lastErr = err
		v.mu.Unlock()
		if v.config.Metrics != nil {
			v.config.Metrics.Add("visual_present_errors_total", 1)
		}
		return err
	}
	if v.config.Metrics != nil {
		v.config.Metrics.Add("visual_frames_total", 1)
	}
	return nil
}

// Err returns the most recent presentation error.
func (v *Visualizer) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Render advances the smeared column profile by one frame.
func (v *Visualizer) Render() Frame {
	width, height := v.surface.Bounds()
	if width < 1 {
		width = 1
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var weights []float64
	if v.source != nil {
		weights = append([]float64(nil), v.source.Weights()...)
	}
	v.seq++

	target := profile(width, weights, v.entropy, v.seq)
	blur(target, int(math.Round(v.refinement*4)))
	if len(v.columns) != width {
		v.columns = target
	} else {
		keep := 0.9 * v.smear
		for i := range v.columns {
			v.columns[i] = keep*v.columns[i] + (1-keep)*target[i]
		}
	}

	return Frame{
		Seq:        v.seq,
		Entropy:    v.entropy,
		Refinement: v.refinement,
		Smear:      v.smear,
		Weights:    weights,
		Columns:    append([]float64(nil), v.columns...),
		Height:     height,
	}
}

// Close stops the frame goroutine if it was started.
func (v *Visualizer) Close() error {
	v.closeOnce.Do(func() {
		close(v.stop)
		started := true
		v.startOnce.Do(func() { started = false })
		if started {
			<-v.done
		}
	})
	return nil
}

// profile evaluates the weighted table shapes across the width and adds an
// entropy-scaled ripple that moves with seq.
func profile(width int, weights []float64, entropy float64, seq uint64) []float64 {
	cols := make([]float64, width)
	for c := range cols {
		x := 0.0
		if width > 1 {
			x = float64(c) / float64(width-1)
		}
		var y float64
		if len(weights) == 0 {
			y = math.Sin(2 * math.Pi * x)
		}
		for i, w := range weights {
			y += w * shape(i, x)
		}
		y += entropy * 0.25 * math.Sin(16*math.Pi*x+0.3*float64(seq))
		cols[c] = math.Max(0, math.Min(1, 0.5+0.5*y))
	}
	return cols
}

func shape(index int, x float64) float64 {
	switch index % 4 {
	case 0:
		return math.Sin(2 * math.Pi * x)
	case 1:
		return 1 - 4*math.Abs(x-0.5)
	case 2:
		return 2*x - 1
	default:
		if x < 0.5 {
			return 1
		}
		return -1
	}
}

func blur(cols []float64, passes int) {
	if len(cols) < 3 {
		return
	}
	tmp := make([]float64, len(cols))
	for p := 0; p < passes; p++ {
		for i := range cols {
			l, r := i-1, i+1
			if l < 0 {
				l = 0
			}
			if r >= len(cols) {
				r = len(cols) - 1
			}
			tmp[i] = 0.25*cols[l] + 0.5*cols[i] + 0.25*cols[r]
		}
		copy(cols, tmp)
	}
}
