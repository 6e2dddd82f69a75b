package control

import (
	"sync"

	"github.com/A-ESxARG/receiver/internal/telemetry"
)

const (
	bufferOccupancyMetricKey = "control_buffer_occupancy"
	bufferOverflowMetricKey  = "control_buffer_overflow_total"
)

// Buffer stores staged commands in a fixed-size ring. It is safe for
// concurrent producers and a single consumer.
type Buffer struct {
	mu      sync.Mutex
	data    []Command
	head    int
	tail    int
	count   int
	metrics telemetry.Metrics
}

// NewBuffer constructs a ring buffer with the provided capacity.
func NewBuffer(capacity int, metrics telemetry.Metrics) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		data:    make([]Command, capacity),
		metrics: metrics,
	}
}

// Capacity reports the maximum number of commands the buffer can hold.
func (b *Buffer) Capacity() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Push stages a command, returning false if the buffer is full.
func (b *Buffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		if b.metrics != nil {
			b.metrics.Add(bufferOverflowMetricKey, 1)
		}
		return false
	}
	b.data[b.tail] = cmd
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	b.storeOccupancyLocked()
	return true
}

// Drain returns staged commands in FIFO order and empties the ring.
func (b *Buffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		idx := (b.head + i) % len(b.data)
		commands[i] = b.data[idx]
		b.data[idx] = Command{}
	}
	b.head, b.tail, b.count = 0, 0, 0
	b.storeOccupancyLocked()
	return commands
}

func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Buffer) storeOccupancyLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(bufferOccupancyMetricKey, uint64(b.count))
}
