// Package journal keeps a rolling buffer of recent step summaries so
// operators can inspect the last moments of a run without a recorder.
package journal

import (
	"sync"
	"time"

	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/logging"
)

const (
	metricEvictedCount = "journal_evicted_count_total"
	metricEvictedAge   = "journal_evicted_age_total"
)

// Entry is one retained value.
type Entry[T any] struct {
	Tick       uint64    `json:"tick"`
	RecordedAt time.Time `json:"recordedAt"`
	Value      T         `json:"value"`
}

// Eviction describes an entry that left the buffer.
type Eviction struct {
	Tick   uint64
	Reason string
}

// RecordResult reports the retention window after a Record.
type RecordResult struct {
	Size    int
	Oldest  uint64
	Newest  uint64
	Evicted []Eviction
}

// Journal retains entries bounded by count and age. It is safe for
// concurrent use.
type Journal[T any] struct {
	mu       sync.RWMutex
	entries  []Entry[T]
	capacity int
	maxAge   time.Duration
	clock    logging.Clock
	metrics  telemetry.Metrics
}

// Config bounds a Journal. A zero MaxAge disables age eviction; a zero
// Capacity retains nothing.
type Config struct {
	Capacity int
	MaxAge   time.Duration
	Clock    logging.Clock
	Metrics  telemetry.Metrics
}

// New constructs a journal with the configured retention.
func New[T any](cfg Config) *Journal[T] {
	if cfg.Capacity < 0 {
		cfg.Capacity = 0
	}
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	return &Journal[T]{
		entries:  make([]Entry[T], 0, cfg.Capacity),
		capacity: cfg.Capacity,
		maxAge:   cfg.MaxAge,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
	}
}

// Record stores value for tick and enforces the retention limits.
func (j *Journal[T]) Record(tick uint64, value T) RecordResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.capacity == 0 {
		j.entries = j.entries[:0]
		return RecordResult{}
	}

	now := j.clock.Now()
	j.entries = append(j.entries, Entry[T]{Tick: tick, RecordedAt: now, Value: value})

	var evicted []Eviction
	if j.maxAge > 0 {
		cutoff := now.Add(-j.maxAge)
		idx := 0
		for idx < len(j.entries) && j.entries[idx].RecordedAt.Before(cutoff) {
			evicted = append(evicted, Eviction{Tick: j.entries[idx].Tick, Reason: "expired"})
			idx++
		}
		j.dropLocked(idx)
		j.count(metricEvictedAge, idx)
	}
	if overflow := len(j.entries) - j.capacity; overflow > 0 {
		for _, e := range j.entries[:overflow] {
			evicted = append(evicted, Eviction{Tick: e.Tick, Reason: "count"})
		}
		j.dropLocked(overflow)
		j.count(metricEvictedCount, overflow)
	}

	result := RecordResult{Size: len(j.entries), Evicted: evicted}
	if result.Size > 0 {
		result.Oldest = j.entries[0].Tick
		result.Newest = j.entries[result.Size-1].Tick
	}
	return result
}

func (j *Journal[T]) dropLocked(n int) {
	if n <= 0 {
		return
	}
	copy(j.entries, j.entries[n:])
	var zero Entry[T]
	for i := len(j.entries) - n; i < len(j.entries); i++ {
		j.entries[i] = zero
	}
	j.entries = j.entries[:len(j.entries)-n]
}

func (j *Journal[T]) count(key string, n int) {
	if j.metrics != nil && n > 0 {
		j.metrics.Add(key, uint64(n))
	}
}

// Entries returns a copy of the buffer in chronological order.
func (j *Journal[T]) Entries() []Entry[T] {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.entries) == 0 {
		return nil
	}
	out := make([]Entry[T], len(j.entries))
	copy(out, j.entries)
	return out
}

// Last returns up to n of the newest entries in chronological order.
func (j *Journal[T]) Last(n int) []Entry[T] {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if n <= 0 || len(j.entries) == 0 {
		return nil
	}
	if n > len(j.entries) {
		n = len(j.entries)
	}
	out := make([]Entry[T], n)
	copy(out, j.entries[len(j.entries)-n:])
	return out
}

// ByTick returns the entry recorded for tick.
func (j *Journal[T]) ByTick(tick uint64) (Entry[T], bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, e := range j.entries {
		if e.Tick == tick {
			return e, true
		}
	}
	return Entry[T]{}, false
}

// Window reports the current retention window.
func (j *Journal[T]) Window() (size int, oldest, newest uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	size = len(j.entries)
	if size == 0 {
		return 0, 0, 0
	}
	return size, j.entries[0].Tick, j.entries[size-1].Tick
}
