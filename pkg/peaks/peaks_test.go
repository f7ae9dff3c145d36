package peaks

import (
	"math"
	"testing"
)

func TestRMSOfConstantSignal(t *testing.T) {
	window := make([]float32, WindowSize)
	for i := range window {
		window[i] = 0.5
	}
	got := rms(window)
	if math.Abs(float64(got)-0.5) > 1e-6 {
		t.Errorf("rms of constant 0.5 window = %v, want 0.5", got)
	}
}

func TestRMSOfSilence(t *testing.T) {
	window := make([]float32, WindowSize)
	got := rms(window)
	if got != 0 {
		t.Errorf("rms of silence = %v, want 0", got)
	}
}

func TestEmitProgressPadsToExpectedLength(t *testing.T) {
	out := make(chan Progress, 1)
	emitProgress(out, []float32{1, 2}, 5, false)
	p := <-out
	if len(p.Peaks) != 5 {
		t.Fatalf("len(Peaks) = %d, want 5", len(p.Peaks))
	}
	if p.Peaks[0] != 1 || p.Peaks[1] != 2 || p.Peaks[2] != 0 {
		t.Errorf("padded peaks = %v, want [1 2 0 0 0]", p.Peaks)
	}
	if p.Done {
		t.Error("Done = true, want false")
	}
}

func TestEmitProgressDoneDoesNotPad(t *testing.T) {
	out := make(chan Progress, 1)
	emitProgress(out, []float32{1, 2, 3}, 10, true)
	p := <-out
	if len(p.Peaks) != 3 {
		t.Fatalf("len(Peaks) = %d, want 3 (unpadded on final emission)", len(p.Peaks))
	}
	if !p.Done {
		t.Error("Done = false, want true")
	}
}
