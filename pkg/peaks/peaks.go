// Package peaks implements the offline RMS waveform extractor.
package peaks

import (
	"context"
	"errors"
	"io"
	"math"

	"github.com/aurelia-audio/playbackengine/pkg/decoders"
	"github.com/aurelia-audio/playbackengine/pkg/types"
)

// WindowSize is the fixed sample window each RMS value summarizes.
const WindowSize = 4000

// progressEveryPackets controls how often a partial Progress is emitted.
const progressEveryPackets = 100

// ErrCancelled is returned by Extract when ctx is cancelled mid-scan.
var ErrCancelled = errors.New("peaks: extraction cancelled")

// Progress is one partial or final peaks emission.
type Progress struct {
	Peaks []float32
	Done  bool
}

// Extract opens fileName with its own PacketSource, disables gapless (it
// never touches the Decoder Loop's sink or ring buffer), and decodes every
// packet from the default track, folding samples into fixed windows of
// WindowSize and computing one RMS value per window. Every
// progressEveryPackets decoded packets it sends a Progress on out padded with
// zeros out to the expected final length; once more at the end it sends the
// final Progress (Done set) with the peaks as computed, unpadded.
//
// Extract checks ctx before decoding each packet; a cancelled ctx stops the
// scan and returns ErrCancelled once the source is closed.
func Extract(ctx context.Context, fileName string, out chan<- Progress) error {
	source, err := decoders.NewPacketSource(fileName)
	if err != nil {
		return err
	}
	defer source.Close()

	spec := source.Spec()
	channels := spec.Channels()

	expected := 0
	if nFrames, ok := source.NFramesTotal(); ok {
		expected = int(nFrames) * channels / WindowSize
	}

	peaksOut := make([]float32, 0, expected)

	var window []float32
	windowCap := WindowSize

	packets := 0
	for {
		select {
		case <-ctx.Done():
			return ErrCancelled
		default:
		}

		buf, err := source.NextPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, types.ErrDecodeTransient) {
				continue
			}
			break
		}

		for frame := 0; frame < int(buf.Dur); frame++ {
			for ch := 0; ch < channels; ch++ {
				window = append(window, buf.Samples[ch][frame])
				if len(window) == windowCap {
					peaksOut = append(peaksOut, rms(window))
					window = window[:0]
				}
			}
		}

		packets++
		if packets%progressEveryPackets == 0 {
			emitProgress(out, peaksOut, expected, false)
		}
	}

	if len(window) > 0 {
		peaksOut = append(peaksOut, rms(window))
	}

	emitProgress(out, peaksOut, expected, true)
	return nil
}

func rms(window []float32) float32 {
	var sumSquares float64
	for _, s := range window {
		sumSquares += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sumSquares / float64(len(window))))
}

func emitProgress(out chan<- Progress, peaksSoFar []float32, expected int, done bool) {
	padded := peaksSoFar
	if !done && expected > len(peaksSoFar) {
		padded = make([]float32, expected)
		copy(padded, peaksSoFar)
	}
	out <- Progress{Peaks: padded, Done: done}
}
