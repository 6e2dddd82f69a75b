package oto

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/A-ESxARG/receiver/internal/audio"
)

type rampSource struct{}

func (rampSource) Render(out []float32) {
	for i := range out {
		out[i] = float32(i) / 10
	}
}

func TestReaderEncodesWholeFramesAsFloat32LE(t *testing.T) {
	null := audio.NewNull(0)
	null.Attach(rampSource{})
	if err := null.Resume(context.Background()); err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	r := &reader{stage: &null.Stage}

	buf := make([]byte, 3*bytesPerSample+1)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if n != 2*bytesPerSample {
		t.Fatalf("expected one stereo frame, read %d bytes", n)
	}
	for i := 0; i < 2; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerSample:]))
		if got != float32(i)/10 {
			t.Fatalf("sample %d: got %f", i, got)
		}
	}
}

func TestReaderYieldsSilenceWhileSuspended(t *testing.T) {
	null := audio.NewNull(0)
	null.Attach(rampSource{})
	r := &reader{stage: &null.Stage}

	buf := make([]byte, 8*bytesPerSample)
	for i := range buf {
		buf[i] = 0xff
	}
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not silent: %x", i, b)
		}
	}
}

func TestReaderShortBuffer(t *testing.T) {
	r := &reader{stage: &audio.NewNull(0).Stage}
	if n, err := r.Read(make([]byte, 5)); n != 0 || err != nil {
		t.Fatalf("expected empty read, got %d %v", n, err)
	}
}
