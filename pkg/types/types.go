package types

import (
	"errors"
	"time"
)

// ChannelLayout is the semantic speaker layout of a SignalSpec. No remap
// onto a device with a different channel count is done: the Output Sink
// opens the device with the source's own channel count.
type ChannelLayout int

const (
	LayoutMono ChannelLayout = iota
	LayoutStereo
	Layout2Point1
	Layout5Point1
)

// LayoutFromChannelCount picks the conventional layout for a raw channel
// count. Formats with no conventional layout fall back to stereo.
func LayoutFromChannelCount(channels int) ChannelLayout {
	switch channels {
	case 1:
		return LayoutMono
	case 3:
		return Layout2Point1
	case 6:
		return Layout5Point1
	default:
		return LayoutStereo
	}
}

func (l ChannelLayout) Channels() int {
	switch l {
	case LayoutMono:
		return 1
	case Layout2Point1:
		return 3
	case Layout5Point1:
		return 6
	default:
		return 2
	}
}

// SignalSpec is the sample rate and channel layout of a decode run. A change
// in either field forces an Output Sink reset.
type SignalSpec struct {
	SampleRate int
	Layout     ChannelLayout
}

func (s SignalSpec) Channels() int {
	return s.Layout.Channels()
}

func (s SignalSpec) Equal(o SignalSpec) bool {
	return s.SampleRate == o.SampleRate && s.Layout == o.Layout
}

// DecodedBuffer is one packet's worth of planar float samples, tagged with
// the presentation timestamp and duration in source frames. PacketSource
// implementations produce these; the Resampler and Output Sink consume them.
type DecodedBuffer struct {
	Spec    SignalSpec
	Samples [][]float32 // len(Samples) == Spec.Channels(), one slice per channel
	TS      int64       // presentation timestamp, in source frames
	Dur     int64       // duration, in source frames (== len(Samples[0]))
}

func (b *DecodedBuffer) EndTS() int64 {
	return b.TS + b.Dur
}

// PacketSource is the common interface for every audio decoder (MP3, FLAC,
// WAV, Vorbis, Opus). It generalizes a plain sample-chunk decoder with the
// packet timestamp, accurate-seek and max-frames-per-packet operations the
// decode loop needs to drive seeking, gapless transitions and sink buffer
// sizing.
type PacketSource interface {
	// Open opens an audio file for decoding.
	Open(fileName string) error

	// Close closes the decoder and releases resources.
	Close() error

	// Spec returns the signal spec reported by the decoder.
	Spec() SignalSpec

	// MaxFramesPerPacket returns the largest frame count any single
	// NextPacket call may return, used to size the resampler's output
	// block and to decide whether the Output Sink must be reset.
	MaxFramesPerPacket() int

	// TrackID returns the id of the selected track within the container.
	TrackID() int

	// NFramesTotal returns the total decodable frame count if known from
	// the container header, and whether it was known.
	NFramesTotal() (int64, bool)

	// SeekAccurate requests that decoding resume at target and returns the
	// frame timestamp the caller must discard packets up to: the caller
	// drops any packet whose EndTS is before the returned value. Sources
	// that can reposition (FLAC) resume decoding at the returned frame;
	// the others keep decoding from their current position, so the caller
	// discards the packets up to the target. ErrResetRequired means the
	// source could not honor the request; the caller should fall back to
	// a seek timestamp of 0.
	SeekAccurate(target time.Duration) (seekTS int64, err error)

	// NextPacket decodes and returns the next packet. Returns io.EOF at
	// end of stream, ErrDecodeTransient for one bad packet (caller should
	// log and continue), or any other error for an I/O failure (caller
	// should treat it like end-of-stream).
	NextPacket() (*DecodedBuffer, error)
}

// PlaybackStatus holds unified playback information for monitoring.
type PlaybackStatus struct {
	FileName        string
	SampleRate      int
	Channels        int
	BitsPerSample   int
	FramesPerBuffer int
	PlayedSamples   uint64
	BufferedSamples uint64
	ElapsedTime     time.Duration
}

// PlaybackMonitor is implemented by anything that can report a PlaybackStatus.
type PlaybackMonitor interface {
	GetPlaybackStatus() PlaybackStatus
}

// Common errors shared by the ring buffer, decoders and decode loop. These
// enable consistent comparison using errors.Is().
var (
	ErrInsufficientSpace  = errors.New("insufficient space in ringbuffer")
	ErrInsufficientData   = errors.New("insufficient data in ringbuffer")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrDecodeTransient    = errors.New("transient decode error")
	ErrResetRequired      = errors.New("seek requires decoder reset")
	ErrDeviceNotAvailable = errors.New("audio output device not available")
)
