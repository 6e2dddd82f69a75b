package audio

import (
	"context"
	"errors"
	"testing"
)

type constSource float32

func (c constSource) Render(out []float32) {
	for i := range out {
		out[i] = float32(c)
	}
}

func TestNullStartsSuspendedAndRendersOnlyWhileRunning(t *testing.T) {
	out := NewNull(0)
	if out.SampleRate() != DefaultSampleRate || out.Channels() != DefaultChannels {
		t.Fatalf("unexpected format %d/%d", out.SampleRate(), out.Channels())
	}
	if out.State() != StateSuspended {
		t.Fatalf("expected suspended output, got %q", out.State())
	}
	out.Attach(constSource(0.25))

	for _, v := range out.Pull(4) {
		if v != 0 {
			t.Fatalf("expected silence while suspended, got %f", v)
		}
	}

	if err := out.Resume(context.Background()); err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	frames := out.Pull(4)
	if len(frames) != 8 {
		t.Fatalf("expected 8 interleaved samples, got %d", len(frames))
	}
	for _, v := range frames {
		if v != 0.25 {
			t.Fatalf("expected rendered source, got %f", v)
		}
	}

	if err := out.Suspend(context.Background()); err != nil {
		t.Fatalf("Suspend returned error: %v", err)
	}
	if resumes, suspends := out.Transitions(); resumes != 1 || suspends != 1 {
		t.Fatalf("unexpected transitions %d/%d", resumes, suspends)
	}
}

func TestNullRejectsLifecycleAfterClose(t *testing.T) {
	out := NewNull(44100)
	if err := out.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if out.State() != StateClosed {
		t.Fatalf("expected closed state, got %q", out.State())
	}
	if err := out.Resume(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestNullHonoursCancelledContext(t *testing.T) {
	out := NewNull(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := out.Resume(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.State() != StateSuspended {
		t.Fatalf("expected state to stay suspended, got %q", out.State())
	}
}

func TestNullFactoryYieldsFreshOutputs(t *testing.T) {
	factory := NullFactory(22050)
	a, err := factory()
	if err != nil {
		t.Fatalf("factory returned error: %v", err)
	}
	b, _ := factory()
	if a == b {
		t.Fatalf("expected distinct outputs")
	}
	if a.SampleRate() != 22050 {
		t.Fatalf("unexpected sample rate %d", a.SampleRate())
	}
}
