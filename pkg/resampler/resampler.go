// Package resampler implements the variable-rate windowed-sinc resampler
// the Decoder Loop uses both to match the output device's sample rate and
// to apply the caller's playback speed, in a single pass.
package resampler

import (
	"math"

	"github.com/aurelia-audio/playbackengine/pkg/types"
)

// sincWindowSize is the half-width, in input frames, of the windowed-sinc
// kernel. Higher values trade CPU for fewer aliasing artifacts.
const sincWindowSize = 8

// Resampler accumulates planar float32 input and emits frames resampled at
// playbackRate relative to the input's own rate. A playbackRate of 1.0 with
// matching input/output rates is a pass-through; any other combination of
// playbackRate and rate ratio is handled by the same sinc interpolation.
type Resampler struct {
	playbackRate float64
	playbackPos  float64
	rateRatio    float64     // inputRate/outputRate, set by the last Push
	input        [][]float32 // planar, accumulated across Push calls
	duration     int         // output frames produced per Resample call
}

// New creates a Resampler that emits duration output frames per Resample
// call, at normal (1.0) playback rate.
func New(spec types.SignalSpec, duration int) *Resampler {
	return WithPlaybackRate(spec, duration, 1.0)
}

// WithPlaybackRate creates a Resampler with a non-default playback rate.
func WithPlaybackRate(spec types.SignalSpec, duration int, playbackRate float64) *Resampler {
	channels := spec.Channels()
	input := make([][]float32, channels)
	for c := range input {
		input[c] = make([]float32, 0, duration)
	}
	return &Resampler{
		playbackRate: playbackRate,
		rateRatio:    1.0,
		input:        input,
		duration:     duration,
	}
}

// SetPlaybackRate changes the playback rate applied to subsequent output.
func (r *Resampler) SetPlaybackRate(rate float64) {
	r.playbackRate = rate
}

// SetPlaybackPos overrides the fractional read position in the input
// buffer, used by the Decoder Loop when resetting mid-stream after a seek.
func (r *Resampler) SetPlaybackPos(pos float64) {
	r.playbackPos = pos
}

// RemainingSamples returns how many input frames remain unread at the
// current playback position.
func (r *Resampler) RemainingSamples() int64 {
	remaining := int64(len(r.input[0])) - int64(r.playbackPos)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Push appends decoded planar samples to the input buffer, combining the
// rate conversion implied by spec.SampleRate with whatever playback rate is
// already set.
func (r *Resampler) Push(buf *types.DecodedBuffer, inputRate, outputRate int) {
	rateRatio := float64(inputRate) / float64(outputRate)
	for c := range r.input {
		if c < len(buf.Samples) {
			r.input[c] = append(r.input[c], buf.Samples[c]...)
		}
	}
	r.rateRatio = rateRatio
}

// Resample produces the next block of up to r.duration output frames. It
// returns nil once the input buffer is exhausted at the current position.
func (r *Resampler) Resample() [][]float32 {
	if len(r.input) == 0 || len(r.input[0]) == 0 {
		return nil
	}
	if r.playbackPos >= float64(len(r.input[0])) {
		return nil
	}
	if len(r.input[0]) < r.duration {
		return nil
	}

	numChannels := len(r.input)
	out := make([][]float32, numChannels)
	for c := range out {
		out[c] = make([]float32, r.duration)
	}

	step := r.playbackRate * r.rateRatio

	framesWritten := 0
	for i := 0; i < r.duration; i++ {
		if r.playbackPos >= float64(len(r.input[0])) {
			break
		}

		intPos := int(r.playbackPos)
		frac := r.playbackPos - float64(intPos)

		for c := 0; c < numChannels; c++ {
			var sample float32
			for offset := -sincWindowSize; offset <= sincWindowSize; offset++ {
				sincValue := windowedSinc(frac-float64(offset), sincWindowSize)
				pos := intPos + offset
				if pos >= 0 && pos < len(r.input[c]) {
					sample += r.input[c][pos] * float32(sincValue)
				}
			}
			out[c][i] = sample
		}

		r.playbackPos += step
		framesWritten = i + 1
	}

	if framesWritten == 0 {
		return nil
	}
	if framesWritten < r.duration {
		for c := range out {
			out[c] = out[c][:framesWritten]
		}
	}
	return out
}

// Flush drops consumed input, retaining only frames at or past the current
// playback position, and rebases playbackPos to the start of what remains.
func (r *Resampler) Flush() {
	if len(r.input) == 0 || len(r.input[0]) == 0 {
		return
	}
	consumed := int(r.playbackPos)
	if consumed <= 0 {
		return
	}
	for c := range r.input {
		if consumed >= len(r.input[c]) {
			r.input[c] = r.input[c][:0]
		} else {
			r.input[c] = append(r.input[c][:0], r.input[c][consumed:]...)
		}
	}
	r.playbackPos -= float64(consumed)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(x*math.Pi) / (x * math.Pi)
}

func windowedSinc(x float64, windowSize int) float64 {
	windowFactor := 0.5 * (1 + math.Cos(math.Pi*x/float64(windowSize)))
	return sinc(x) * windowFactor
}
