package recording

import (
	"context"
	"fmt"
	"sync"

	"github.com/A-ESxARG/receiver/internal/telemetry"
)

const (
	defaultBatchSize = 64

	metricTicksRecorded = "recording_ticks_total"
	metricFlushErrors   = "recording_flush_errors_total"
)

// RecorderConfig tunes a Recorder.
type RecorderConfig struct {
	BatchSize int
	Metrics   telemetry.Metrics
}

// Recorder buffers ticks for one session and writes them in batches.
type Recorder struct {
	store   *Store
	session Session
	cfg     RecorderConfig

	mu      sync.Mutex
	pending []Tick
	closed  bool
}

// NewRecorder records into session.
func NewRecorder(store *Store, session Session, cfg RecorderConfig) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Recorder{
		store:   store,
		session: session,
		cfg:     cfg,
		pending: make([]Tick, 0, cfg.BatchSize),
	}
}

// Session reports the session being recorded.
func (r *Recorder) Session() Session {
	return r.session
}

// Record queues a tick and flushes once a batch is full.
func (r *Recorder) Record(ctx context.Context, t Tick) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("recorder closed")
	}
	r.pending = append(r.pending, t)
	full := len(r.pending) >= r.cfg.BatchSize
	r.mu.Unlock()
	if !full {
		return nil
	}
	return r.Flush(ctx)
}

// Flush writes every queued tick.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = make([]Tick, 0, r.cfg.BatchSize)
	r.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	if err := r.store.AppendTicks(ctx, r.session.ID, batch); err != nil {
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.Add(metricFlushErrors, 1)
		}
		return fmt.Errorf("flush session %d: %w", r.session.ID, err)
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.Add(metricTicksRecorded, uint64(len(batch)))
	}
	return nil
}

// Close flushes and stops accepting ticks. The store stays open.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	return r.Flush(ctx)
}
