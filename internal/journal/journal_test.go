package journal

import (
	"sync"
	"testing"
	"time"

	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/logging"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestJournalEvictsByCount(t *testing.T) {
	metrics := &logging.Metrics{}
	j := New[string](Config{Capacity: 2, Metrics: telemetry.WrapMetrics(metrics)})
	j.Record(1, "a")
	j.Record(2, "b")
	result := j.Record(3, "c")

	if result.Size != 2 || result.Oldest != 2 || result.Newest != 3 {
		t.Fatalf("unexpected window %+v", result)
	}
	if len(result.Evicted) != 1 || result.Evicted[0].Tick != 1 || result.Evicted[0].Reason != "count" {
		t.Fatalf("unexpected evictions %+v", result.Evicted)
	}
	if _, ok := j.ByTick(1); ok {
		t.Fatalf("expected tick 1 evicted")
	}
	if e, ok := j.ByTick(3); !ok || e.Value != "c" {
		t.Fatalf("expected tick 3 retained, got %+v", e)
	}
	if metrics.Snapshot()[metricEvictedCount] != 1 {
		t.Fatalf("expected eviction metric, got %v", metrics.Snapshot())
	}
}

func TestJournalEvictsByAge(t *testing.T) {
	clock := &manualClock{now: time.Unix(100, 0)}
	j := New[int](Config{Capacity: 10, MaxAge: time.Second, Clock: clock})
	j.Record(1, 1)
	clock.advance(600 * time.Millisecond)
	j.Record(2, 2)
	clock.advance(600 * time.Millisecond)
	result := j.Record(3, 3)

	if len(result.Evicted) != 1 || result.Evicted[0].Reason != "expired" || result.Evicted[0].Tick != 1 {
		t.Fatalf("unexpected evictions %+v", result.Evicted)
	}
	if size, oldest, newest := j.Window(); size != 2 || oldest != 2 || newest != 3 {
		t.Fatalf("unexpected window %d %d %d", size, oldest, newest)
	}
}

func TestJournalZeroCapacityRetainsNothing(t *testing.T) {
	j := New[int](Config{})
	if result := j.Record(1, 1); result.Size != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if j.Entries() != nil {
		t.Fatalf("expected no entries")
	}
}

func TestJournalReadsAreCopies(t *testing.T) {
	j := New[[]float64](Config{Capacity: 4})
	j.Record(1, []float64{1})
	j.Record(2, []float64{2})
	j.Record(3, []float64{3})

	entries := j.Entries()
	entries[0].Tick = 99
	if e, _ := j.ByTick(1); e.Tick != 1 {
		t.Fatalf("entries slice aliases the buffer")
	}

	last := j.Last(2)
	if len(last) != 2 || last[0].Tick != 2 || last[1].Tick != 3 {
		t.Fatalf("unexpected tail %+v", last)
	}
	if got := j.Last(10); len(got) != 3 {
		t.Fatalf("expected Last to cap at size, got %d", len(got))
	}
	if j.Last(0) != nil {
		t.Fatalf("expected nil for non-positive n")
	}
}
