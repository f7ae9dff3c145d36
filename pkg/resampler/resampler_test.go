package resampler

import (
	"math"
	"testing"

	"github.com/aurelia-audio/playbackengine/pkg/types"
)

func TestResamplePassThroughPreservesLength(t *testing.T) {
	spec := types.SignalSpec{SampleRate: 44100, Layout: types.LayoutStereo}
	r := New(spec, 100)

	buf := &types.DecodedBuffer{
		Spec:    spec,
		Samples: [][]float32{make([]float32, 200), make([]float32, 200)},
		Dur:     200,
	}
	for i := range buf.Samples[0] {
		buf.Samples[0][i] = 1.0
		buf.Samples[1][i] = -1.0
	}

	r.Push(buf, 44100, 44100)
	out := r.Resample()
	if out == nil {
		t.Fatal("Resample returned nil")
	}
	if len(out) != 2 {
		t.Fatalf("got %d channels, want 2", len(out))
	}
	if len(out[0]) != 100 {
		t.Fatalf("got %d frames, want 100", len(out[0]))
	}

	// Constant input should resample to (approximately) the same constant.
	for i, s := range out[0] {
		if math.Abs(float64(s)-1.0) > 0.05 {
			t.Errorf("out[0][%d] = %v, want close to 1.0", i, s)
		}
	}
}

func TestResampleReturnsNilUntilDurationFramesAccumulated(t *testing.T) {
	spec := types.SignalSpec{SampleRate: 44100, Layout: types.LayoutMono}
	r := New(spec, 64)

	buf := &types.DecodedBuffer{
		Spec:    spec,
		Samples: [][]float32{make([]float32, 32)},
		Dur:     32,
	}
	r.Push(buf, 44100, 44100)

	if out := r.Resample(); out != nil {
		t.Fatalf("expected nil with only 32 of 64 frames accumulated, got %d frames", len(out[0]))
	}

	r.Push(buf, 44100, 44100)

	out := r.Resample()
	if out == nil {
		t.Fatal("expected a block once 64 frames accumulated, got nil")
	}
	if len(out[0]) != 64 {
		t.Errorf("got %d frames, want 64", len(out[0]))
	}
}

func TestHalfSpeedHalvesFramesConsumedPerOutputFrame(t *testing.T) {
	spec := types.SignalSpec{SampleRate: 44100, Layout: types.LayoutMono}
	r := WithPlaybackRate(spec, 10, 0.5)

	buf := &types.DecodedBuffer{
		Spec:    spec,
		Samples: [][]float32{make([]float32, 100)},
		Dur:     100,
	}
	r.Push(buf, 44100, 44100)
	r.Resample()

	if r.playbackPos != 5.0 {
		t.Errorf("playbackPos after 10 frames at 0.5x = %v, want 5.0", r.playbackPos)
	}
}

func TestFlushRebasesPlaybackPos(t *testing.T) {
	spec := types.SignalSpec{SampleRate: 44100, Layout: types.LayoutMono}
	r := New(spec, 10)

	buf := &types.DecodedBuffer{
		Spec:    spec,
		Samples: [][]float32{make([]float32, 100)},
		Dur:     100,
	}
	r.Push(buf, 44100, 44100)
	r.Resample()
	r.Flush()

	if r.playbackPos != 0 {
		t.Errorf("playbackPos after Flush = %v, want 0", r.playbackPos)
	}
	if len(r.input[0]) != 90 {
		t.Errorf("input length after Flush = %d, want 90", len(r.input[0]))
	}
}
