// Package wave implements the persona wavetable engine: a bank of
// single-cycle tables morphed by a control value and shaped by the preset
// parameters.
package wave

import (
	"context"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"

	"github.com/A-ESxARG/receiver/internal/audio"
)

const (
	TableSize = 512

	baseFrequency = 110.0
	outputGain    = 0.2
	maxDelaySecs  = 0.5
)

// TableIDs names the tables in bank order.
var TableIDs = []string{"sine", "triangle", "saw", "square"}

// Params is the full parameter set of a Synth. It is comparable, so two
// snapshots can be checked for equality directly.
type Params struct {
	Delay      float64 `json:"delay"`
	Entropy    float64 `json:"entropy"`
	Refinement float64 `json:"refinement"`
	Coupling   float64 `json:"coupling"`
	Value      float64 `json:"value"`
}

// DefaultParams is the parameter set of a new Synth.
var DefaultParams = Params{
	Delay:      0.2,
	Entropy:    0,
	Refinement: 0.5,
	Coupling:   0,
	Value:      0,
}

// Dominant identifies the table carrying the largest morph weight.
type Dominant struct {
	ID     string  `json:"id"`
	Index  int     `json:"index"`
	Weight float64 `json:"weight"`
}

// State is a read-only snapshot of the engine.
type State struct {
	Value        float64   `json:"value"`
	RichnessNorm *float64  `json:"richnessNorm,omitempty"`
	Dominant     Dominant  `json:"dominant"`
	Weights      []float64 `json:"weights"`
}

// Synth renders the morphed cycle into an audio.Output. All methods are safe
// for concurrent use; Render is called from the device goroutine.
type Synth struct {
	mu sync.Mutex

	out        audio.Output
	sampleRate int
	channels   int

	params  Params
	tables  [][]float64
	weights []float64
	cycle   []float64
	rich    float64
	dirty   bool

	playing  bool
	phase    float64
	delayBuf []float64
	delayPos int
}

// New builds a synth over out and attaches it as the output's source. A nil
// output yields a synth that can be driven and inspected but never plays.
func New(out audio.Output) *Synth {
	s := &Synth{
		out:        out,
		sampleRate: audio.DefaultSampleRate,
		channels:   audio.DefaultChannels,
		params:     DefaultParams,
		tables:     buildTables(),
		dirty:      true,
	}
	if out != nil {
		if sr := out.SampleRate(); sr > 0 {
			s.sampleRate = sr
		}
		if ch := out.Channels(); ch > 0 {
			s.channels = ch
		}
	}
	s.delayBuf = make([]float64, int(maxDelaySecs*float64(s.sampleRate))+1)
	if out != nil {
		out.Attach(s)
	}
	return s
}

func buildTables() [][]float64 {
	tables := make([][]float64, len(TableIDs))
	for i := range tables {
		tables[i] = make([]float64, TableSize)
	}
	for k := 0; k < TableSize; k++ {
		x := float64(k) / TableSize
		tables[0][k] = math.Sin(2 * math.Pi * x)
		switch {
		case x < 0.25:
			tables[1][k] = 4 * x
		case x < 0.75:
			tables[1][k] = 2 - 4*x
		default:
			tables[1][k] = 4*x - 4
		}
		tables[2][k] = 2*x - 1
		if x < 0.5 {
			tables[3][k] = 1
		} else {
			tables[3][k] = -1
		}
	}
	return tables
}

func (s *Synth) SetDelay(v float64)      { s.set(&s.params.Delay, v) }
func (s *Synth) SetEntropy(v float64)    { s.set(&s.params.Entropy, v) }
func (s *Synth) SetRefinement(v float64) { s.set(&s.params.Refinement, v) }
func (s *Synth) SetCoupling(v float64)   { s.set(&s.params.Coupling, v) }
func (s *Synth) SetValue(v float64)      { s.set(&s.params.Value, v) }

func (s *Synth) set(field *float64, v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Max(0, math.Min(1, v))
	s.mu.Lock()
	if *field != v {
		*field = v
		s.dirty = true
	}
	s.mu.Unlock()
}

// Params returns the current parameter set.
func (s *Synth) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// State recomputes the cycle if needed and reports value, richness and the
// table weights.
func (s *Synth) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	rich := s.rich
	weights := append([]float64(nil), s.weights...)
	dom := Dominant{ID: TableIDs[0], Index: 0}
	for i, w := range weights {
		if w > dom.Weight {
			dom = Dominant{ID: TableIDs[i], Index: i, Weight: w}
		}
	}
	return State{
		Value:        s.params.Value,
		RichnessNorm: &rich,
		Dominant:     dom,
		Weights:      weights,
	}
}

// Weights returns the current morph weights in TableIDs order.
func (s *Synth) Weights() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return append([]float64(nil), s.weights...)
}

// Resume resumes the output device and enables rendering.
func (s *Synth) Resume(ctx context.Context) error {
	if s.out != nil && s.out.State() != audio.StateRunning {
		if err := s.out.Resume(ctx); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
	return nil
}

// Stop silences rendering and clears the delay line. The output device is
// left to the caller.
func (s *Synth) Stop() {
	s.mu.Lock()
	s.playing = false
	for i := range s.delayBuf {
		s.delayBuf[i] = 0
	}
	s.mu.Unlock()
}

// Playing reports whether Resume has enabled rendering.
func (s *Synth) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Output returns the device the synth renders into, nil when headless.
func (s *Synth) Output() audio.Output {
	return s.out
}

// Render fills out with interleaved frames of the current cycle.
func (s *Synth) Render(out []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		for i := range out {
			out[i] = 0
		}
		return
	}
	s.refreshLocked()

	step := baseFrequency * (1 + 2*s.params.Value) / float64(s.sampleRate) * TableSize
	delaySamples := int(s.params.Delay * maxDelaySecs * float64(s.sampleRate))
	if delaySamples < 1 {
		delaySamples = 1
	}
	feedback := 0.5 * s.params.Delay
	n := len(s.delayBuf)

	for frame := 0; frame+s.channels <= len(out); frame += s.channels {
		i := int(s.phase)
		frac := s.phase - float64(i)
		x := s.cycle[i%TableSize]*(1-frac) + s.cycle[(i+1)%TableSize]*frac
		s.phase = math.Mod(s.phase+step, TableSize)

		tap := s.delayBuf[(s.delayPos-delaySamples+n)%n]
		y := x + feedback*tap
		s.delayBuf[s.delayPos] = y
		s.delayPos = (s.delayPos + 1) % n

		v := float32(outputGain * y)
		for c := 0; c < s.channels; c++ {
			out[frame+c] = v
		}
	}
}

func (s *Synth) refreshLocked() {
	if !s.dirty {
		return
	}
	s.weights = morphWeights(s.params.Value, s.params.Entropy, len(s.tables))
	s.cycle = s.mixCycle()
	s.rich = spectralEntropy(s.cycle)
	s.dirty = false
}

// morphWeights crossfades triangularly across the bank by value, then blends
// toward the uniform mix by entropy.
func morphWeights(value, entropy float64, n int) []float64 {
	weights := make([]float64, n)
	pos := value * float64(n-1)
	uniform := 1 / float64(n)
	for i := range weights {
		w := math.Max(0, 1-math.Abs(pos-float64(i)))
		weights[i] = (1-entropy)*w + entropy*uniform
	}
	return weights
}

func (s *Synth) mixCycle() []float64 {
	cycle := make([]float64, TableSize)
	dom := 0
	for i, w := range s.weights {
		if w > s.weights[dom] {
			dom = i
		}
		for k := range cycle {
			cycle[k] += w * s.tables[i][k]
		}
	}

	if c := s.params.Coupling; c > 0 {
		partner := s.tables[(dom+1)%len(s.tables)]
		for k := range cycle {
			cycle[k] = (1-c)*cycle[k] + c*cycle[k]*partner[k]
		}
	}

	// One-pole smoothing around the cycle. The first lap settles the filter
	// so the stored lap has no start-up transient.
	alpha := 1 - 0.9*s.params.Refinement
	y := cycle[TableSize-1]
	smoothed := make([]float64, TableSize)
	for lap := 0; lap < 2; lap++ {
		for k, x := range cycle {
			y += alpha * (x - y)
			smoothed[k] = y
		}
	}
	return smoothed
}

// spectralEntropy is the Shannon entropy of the cycle's power spectrum,
// excluding DC, normalised by the maximum for the bin count.
func spectralEntropy(cycle []float64) float64 {
	spectrum := fft.FFTReal(cycle)
	bins := len(cycle) / 2
	power := make([]float64, bins)
	var total float64
	for k := 1; k <= bins; k++ {
		m := cmplx.Abs(spectrum[k])
		power[k-1] = m * m
		total += power[k-1]
	}
	if total <= 1e-12 {
		return 0
	}
	var h float64
	for _, p := range power {
		p /= total
		if p > 1e-15 {
			h -= p * math.Log(p)
		}
	}
	return math.Max(0, math.Min(1, h/math.Log(float64(bins))))
}
