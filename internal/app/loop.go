package app

import (
	"context"
	"sync"
	"time"

	"github.com/A-ESxARG/receiver/internal/control"
	"github.com/A-ESxARG/receiver/internal/receiver"
	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/logging"
)

const (
	defaultTickRate = 60

	metricCommandsApplied  = "loop_commands_applied_total"
	metricCommandsRejected = "loop_commands_rejected_total"
	metricClampedTicks     = "loop_clamped_ticks_total"
	metricOverBudgetTicks  = "loop_over_budget_ticks_total"
)

// Stepper is the receiver surface the frame loop drives.
type Stepper interface {
	control.Applier
	Step(dt float64) receiver.TickOutput
	Ticks() uint64
	Time() float64
	Value() float64
	Jitter() float64
}

var _ Stepper = (*receiver.Receiver)(nil)

// LoopConfig tunes the frame loop.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
}

// LoopDeps carries the loop's ambient collaborators.
type LoopDeps struct {
	Clock   logging.Clock
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// LoopHooks observe each completed step on the loop goroutine.
type LoopHooks struct {
	AfterStep func(StepResult)
}

// StepResult describes one advanced frame.
type StepResult struct {
	Now          time.Time
	Delta        float64
	ClampedDelta bool
	MaxDelta     float64
	Duration     time.Duration
	Budget       time.Duration
	Commands     []control.Command
	Rejected     int
	Summary      Summary
}

// Loop owns the receiver: commands from other goroutines are staged in a
// ring buffer and applied on the loop goroutine before each step.
type Loop struct {
	target Stepper
	buffer *control.Buffer
	config LoopConfig
	deps   LoopDeps
	hooks  LoopHooks

	mu     sync.RWMutex
	latest Summary
	ok     bool
}

// NewLoop wraps target with a command buffer and fixed-rate runner.
func NewLoop(target Stepper, cfg LoopConfig, deps LoopDeps, hooks LoopHooks) *Loop {
	if target == nil {
		return nil
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaultTickRate
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.Discard()
	}
	return &Loop{
		target: target,
		buffer: control.NewBuffer(cfg.CommandCapacity, deps.Metrics),
		config: cfg,
		deps:   deps,
		hooks:  hooks,
	}
}

// Enqueue stages cmd for the next step. It is safe for concurrent use.
func (l *Loop) Enqueue(cmd control.Command) bool {
	if l == nil {
		return false
	}
	if !l.buffer.Push(cmd) {
		l.deps.Logger.Printf("[backpressure] dropping %s command from %s", cmd.Kind, cmd.Origin)
		return false
	}
	return true
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Latest returns the summary of the most recent step.
func (l *Loop) Latest() (Summary, bool) {
	if l == nil {
		return Summary{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest, l.ok
}

// Advance applies staged commands and runs one step of dt seconds.
func (l *Loop) Advance(now time.Time, dt float64) StepResult {
	commands := l.buffer.Drain()
	rejected := 0
	for _, cmd := range commands {
		if !control.Apply(l.target, cmd) {
			rejected++
		}
	}
	if l.deps.Metrics != nil {
		if applied := len(commands) - rejected; applied > 0 {
			l.deps.Metrics.Add(metricCommandsApplied, uint64(applied))
		}
		if rejected > 0 {
			l.deps.Metrics.Add(metricCommandsRejected, uint64(rejected))
		}
	}

	out := l.target.Step(dt)
	summary := Summarize(l.target, out)

	l.mu.Lock()
	l.latest, l.ok = summary, true
	l.mu.Unlock()

	return StepResult{
		Now:      now,
		Delta:    dt,
		Commands: commands,
		Rejected: rejected,
		Summary:  summary,
	}
}

// Run drives the fixed-rate loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := l.deps.Clock
	last := clock.Now()
	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			start := time.Now()
			result := l.Advance(now, dt)
			result.Duration = time.Since(start)
			result.Budget = budget
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			if l.deps.Metrics != nil {
				if clamped {
					l.deps.Metrics.Add(metricClampedTicks, 1)
				}
				if result.Duration > budget {
					l.deps.Metrics.Add(metricOverBudgetTicks, 1)
				}
			}
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}
