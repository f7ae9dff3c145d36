// Package visualize derives the compact visualization payload the Output
// Sink sends to its visualization sink after every callback: an FFT -> IFFT
// round trip followed by a downmix to bytes for float streams, and a raw
// byte passthrough for integer streams, per the engine's visualization side
// channel contract.
package visualize

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform holds the FFT plan reused across callbacks so that steady-state
// visualization dispatch does not allocate a new plan per tick.
type Transform struct {
	fft *fourier.FFT
	n   int
}

// New creates a Transform sized for n real samples per callback.
func New(n int) *Transform {
	if n <= 0 {
		return &Transform{}
	}
	return &Transform{fft: fourier.NewFFT(n), n: n}
}

// FromFloat runs FFT -> IFFT over samples and downmixes the round-tripped
// real part into a byte payload: interleaved pairs are decimated (even
// pairs skipped) and biased by +128 to fit an unsigned byte, matching the
// source pipeline's visualization shaping.
func (t *Transform) FromFloat(samples []float32) []byte {
	if t.fft == nil || len(samples) != t.n {
		t = New(len(samples))
	}

	real := make([]float64, len(samples))
	for i, s := range samples {
		real[i] = float64(s)
	}

	spectrum := t.fft.Coefficients(nil, real)
	roundTripped := t.fft.Sequence(nil, spectrum)

	out := make([]byte, 0, len(roundTripped)/2)
	for i := 0; i < len(roundTripped); i += 2 {
		v := roundTripped[i]/float64(len(roundTripped)) + 128
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out = append(out, byte(v))
	}
	return out
}

// FromInt passes integer-stream bytes through unchanged; no FFT stage
// applies to already-quantized PCM.
func FromInt(raw []byte) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
