// Package outputsink owns the ring buffer consumer and the audio device
// callback, generalizing internal/fileplayer's audioCallback from a single
// decode-until-EOF producer into the full Output Sink described by the
// engine: device re-selection, timestamp policy, volume, fades, and
// visualization dispatch, all polled non-blockingly from the real-time
// callback.
package outputsink

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/aurelia-audio/playbackengine/internal/controlbus"
	"github.com/aurelia-audio/playbackengine/internal/outputsink/visualize"
	"github.com/aurelia-audio/playbackengine/pkg/resampler"
	"github.com/aurelia-audio/playbackengine/pkg/ringbuffer"
	"github.com/aurelia-audio/playbackengine/pkg/types"
	"github.com/aurelia-audio/playbackengine/pkg/visualsink"
)

// WriteTimeout is the blocking producer-side timeout spec §4.4 calls for on
// every ring buffer write.
const WriteTimeout = 500 * time.Millisecond

// DrainPollInterval is how often the Decoder Loop (via HasRemainingSamples)
// and internal drain waits poll the ring buffer for emptiness.
const DrainPollInterval = 500 * time.Millisecond

// Config configures a new Sink.
type Config struct {
	DeviceIndex     int
	DeviceName      string
	Spec            types.SignalSpec
	BitsPerSample   int
	FramesPerBuffer int
	MaxFramesPacket int
	VisSink         visualsink.Sink
}

// Sink is the Output Sink: ring buffer consumer, PortAudio callback owner,
// and non-real-time write()/flush()/pause()/resume() entry points used by
// the Decoder Loop.
type Sink struct {
	bus *controlbus.Bus

	deviceIndex  int
	deviceName   string
	spec         types.SignalSpec
	bitsPerSample int
	bytesPerSample int
	framesPerBuffer int

	stream *portaudio.PaStream
	ring   *ringbuffer.RingBuffer

	resamplerMu sync.Mutex
	resampler   *resampler.Resampler

	visDispatch *visualsink.Dispatcher
	visualize   *visualize.Transform
	visBuf      []float32
	visBufPos   int
	visMu       sync.Mutex

	// Hot-path state, touched only by the callback goroutine except where noted.
	isPlaying     atomic.Bool
	playbackSpeed atomic.Uint64 // float64 bits
	volume        atomic.Uint64 // float64 bits
	frameIndex    atomic.Uint64
	stale         atomic.Bool // set when a pending device-change invalidates this sink

	lastEmittedSeconds    atomic.Int64
	lastEmittedFractional float64

	timestampEmit atomic.Bool

	onTimestamp func(seconds float64)
}

// New creates a Sink bound to bus for control-message polling, with ring
// buffer capacity sized from cfg.Spec per pkg/ringbuffer.BufferSeconds.
func New(bus *controlbus.Bus, cfg Config) *Sink {
	visSink := cfg.VisSink
	if visSink == nil {
		visSink = visualsink.Discard{}
	}

	s := &Sink{
		bus:             bus,
		deviceIndex:     cfg.DeviceIndex,
		deviceName:      cfg.DeviceName,
		spec:            cfg.Spec,
		bitsPerSample:   cfg.BitsPerSample,
		bytesPerSample:  cfg.BitsPerSample / 8,
		framesPerBuffer: cfg.FramesPerBuffer,
		visualize:       visualize.New(cfg.FramesPerBuffer),
		visBuf:          make([]float32, cfg.FramesPerBuffer),
	}
	s.visDispatch = visualsink.NewDispatcher(visSink, visualsink.FrameFormat{
		SampleRate:    uint32(cfg.Spec.SampleRate),
		Channels:      uint8(cfg.Spec.Channels()),
		BitsPerSample: 8, // visualization payload bytes, not source PCM depth
	})
	s.volume.Store(math.Float64bits(1.0))
	s.playbackSpeed.Store(math.Float64bits(1.0))
	s.timestampEmit.Store(true)

	s.ring = ringbuffer.NewForSpec(cfg.Spec.SampleRate, cfg.Spec.Channels(), s.bytesPerSample)
	return s
}

// SetTimestampHandler installs the callback invoked, from the audio device
// thread, whenever the sink emits a timestamp event (outward to the host
// and into bus.TimestampFromSink).
func (s *Sink) SetTimestampHandler(fn func(seconds float64)) { s.onTimestamp = fn }

// Open registers the PortAudio output stream and starts the callback.
func (s *Sink) Open() error {
	var sampleFormat portaudio.PaSampleFormat
	switch s.bitsPerSample {
	case 16:
		sampleFormat = portaudio.SampleFmtInt16
	case 24:
		sampleFormat = portaudio.SampleFmtInt24
	case 32:
		sampleFormat = portaudio.SampleFmtInt32
	default:
		return fmt.Errorf("unsupported bit depth: %d", s.bitsPerSample)
	}

	stream := &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  s.deviceIndex,
			ChannelCount: s.spec.Channels(),
			SampleFormat: sampleFormat,
		},
		SampleRate: float64(s.spec.SampleRate),
	}

	if err := stream.OpenCallback(s.framesPerBuffer, s.audioCallback); err != nil {
		return fmt.Errorf("%w: %s", types.ErrDeviceNotAvailable, err)
	}
	if err := stream.StartStream(); err != nil {
		return fmt.Errorf("%w: %s", types.ErrDeviceNotAvailable, err)
	}

	s.stream = stream
	s.isPlaying.Store(true)
	return nil
}

// Close tears down the stream.
func (s *Sink) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.StopStream(); err != nil {
		slog.Warn("outputsink: stop stream failed", "error", err)
	}
	if err := s.stream.CloseCallback(); err != nil {
		slog.Warn("outputsink: close stream failed", "error", err)
	}
	s.stream = nil
	s.visDispatch.Close()
	return nil
}

// MarkStale flags this sink instance as superseded by a pending device
// swap; the callback will silence output until the Decoder Loop replaces it.
func (s *Sink) MarkStale() { s.stale.Store(true) }

// Pause stops the device stream without discarding its buffered audio.
func (s *Sink) Pause() error {
	s.isPlaying.Store(false)
	if s.stream != nil {
		return s.stream.StopStream()
	}
	return nil
}

// Resume restarts the device stream.
func (s *Sink) Resume() error {
	if s.stream != nil {
		if err := s.stream.StartStream(); err != nil {
			return err
		}
	}
	s.isPlaying.Store(true)
	return nil
}

// UpdateResampler creates or drops the reservoir resampler depending on
// whether spec/speed require one. Returns true if a resampler is (now) in
// use. Per spec §4.3, the resampler is bypassed only when the source rate
// equals the device rate and speed == 1.0.
func (s *Sink) UpdateResampler(srcSpec types.SignalSpec, maxFrames int, speed float64, isReset bool) bool {
	s.resamplerMu.Lock()
	defer s.resamplerMu.Unlock()

	needed := srcSpec.SampleRate != s.spec.SampleRate || speed != 1.0
	if !needed {
		s.resampler = nil
		return false
	}
	if s.resampler == nil || isReset {
		s.resampler = resampler.WithPlaybackRate(srcSpec, maxFrames, speed)
	} else {
		s.resampler.SetPlaybackRate(speed)
	}
	return true
}

// Matches reports whether this sink instance can keep serving a track with
// the given source spec, device name and max-frames-per-packet, or whether
// the Decoder Loop must reset it (spec §4.2's reset trigger list).
func (s *Sink) Matches(srcSpec types.SignalSpec, deviceName string, maxFramesPerPacket int) bool {
	return s.deviceName == deviceName &&
		s.spec.Channels() == srcSpec.Channels() &&
		(s.spec.SampleRate == srcSpec.SampleRate || s.resamplerInUse()) &&
		s.framesPerBuffer >= maxFramesPerPacket
}

func (s *Sink) resamplerInUse() bool {
	s.resamplerMu.Lock()
	defer s.resamplerMu.Unlock()
	return s.resampler != nil
}

// ResamplerDelay returns the number of input samples still held in the
// resampler's reservoir, used to time the song_change event during a
// gapless transition.
func (s *Sink) ResamplerDelay() int64 {
	s.resamplerMu.Lock()
	defer s.resamplerMu.Unlock()
	if s.resampler == nil {
		return 0
	}
	return s.resampler.RemainingSamples()
}

// HasRemainingSamples reports whether the ring buffer still holds unread
// audio, used by the Decoder Loop's gapless drain and stop sequence.
func (s *Sink) HasRemainingSamples() bool {
	return s.ring.AvailableRead() > 0
}

// GetPlaybackStatus implements types.PlaybackMonitor, reporting the sink's
// current position and backlog for external monitoring.
func (s *Sink) GetPlaybackStatus() types.PlaybackStatus {
	channels := s.spec.Channels()
	frameIdx := s.frameIndex.Load()
	elapsed := time.Duration(float64(frameIdx) / float64(s.spec.SampleRate*channels) * float64(time.Second))

	bufferedBytes := s.ring.AvailableRead()
	bufferedSamples := uint64(0)
	if s.bytesPerSample > 0 {
		bufferedSamples = bufferedBytes / uint64(s.bytesPerSample)
	}

	return types.PlaybackStatus{
		SampleRate:      s.spec.SampleRate,
		Channels:        channels,
		BitsPerSample:   s.bitsPerSample,
		FramesPerBuffer: s.framesPerBuffer,
		PlayedSamples:   frameIdx,
		BufferedSamples: bufferedSamples,
		ElapsedTime:     elapsed,
	}
}

// Flush discards the resampler reservoir (best-effort) and clears the ring
// buffer.
func (s *Sink) Flush() {
	s.resamplerMu.Lock()
	if s.resampler != nil {
		// Resampler.Flush drops only consumed input; moving the read
		// position past the remaining frames makes the second call drop
		// the whole reservoir.
		s.resampler.Flush()
		s.resampler.SetPlaybackPos(float64(s.resampler.RemainingSamples()))
		s.resampler.Flush()
	}
	s.resamplerMu.Unlock()
	s.ring.Reset()
}

// Write resamples or interleaves buf, applies linear fade ramps to the
// first rampUpSamples / last rampDownSamples frames, and blocks (up to
// WriteTimeout) pushing the result into the ring buffer.
func (s *Sink) Write(buf *types.DecodedBuffer, rampUpSamples, rampDownSamples int) error {
	planar := buf.Samples

	s.resamplerMu.Lock()
	r := s.resampler
	s.resamplerMu.Unlock()

	if r != nil {
		r.Push(buf, buf.Spec.SampleRate, s.spec.SampleRate)
		planar = r.Resample()
		if planar == nil {
			return nil
		}
	}

	applyFades(planar, rampUpSamples, rampDownSamples)

	raw := make([]byte, len(planar[0])*s.spec.Channels()*s.bytesPerSample)
	n := types.PlanarFloat32ToInterleavedInt(planar, s.bitsPerSample, raw)
	raw = raw[:n*s.spec.Channels()*s.bytesPerSample]

	_, err := s.ring.WriteTimeout(raw, WriteTimeout)
	return err
}

// applyFades scales the first up and last down frames of planar by a
// linear 0->1 / 1->0 ramp, masking discontinuities at packet boundaries.
func applyFades(planar [][]float32, up, down int) {
	if len(planar) == 0 {
		return
	}
	frames := len(planar[0])

	if up > 0 {
		n := min(up, frames)
		for i := 0; i < n; i++ {
			g := float32(i) / float32(up)
			for c := range planar {
				planar[c][i] *= g
			}
		}
	}
	if down > 0 {
		n := min(down, frames)
		for i := 0; i < n; i++ {
			g := float32(i) / float32(down)
			idx := frames - 1 - i
			for c := range planar {
				planar[c][idx] *= g
			}
		}
	}
}

// audioCallback implements the Output Sink's seven-step per-invocation
// protocol. It runs on PortAudio's own thread, not a Go goroutine, and must
// never block.
func (s *Sink) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {

	// 1. Device re-selection check.
	select {
	case name := <-s.bus.DeviceChange:
		if name != s.deviceName {
			s.stale.Store(true)
		}
	default:
	}
	if s.stale.Load() {
		clear(output)
		return portaudio.Continue
	}

	// 2. Timestamp-emit policy update.
	select {
	case emit := <-s.bus.TimestampEmit:
		s.timestampEmit.Store(emit)
	default:
	}

	// 3. Reset signal.
	select {
	case <-s.bus.Reset:
		s.frameIndex.Store(0)
		s.lastEmittedSeconds.Store(0)
		s.lastEmittedFractional = 0
		if s.timestampEmit.Load() {
			s.emitTimestamp(0)
		}
	default:
	}

	// 4. Volume update.
	select {
	case v := <-s.bus.Volume:
		s.volume.Store(math.Float64bits(v.Value))
	default:
	}

	// 5. Playback state update.
	var speed float64 = math.Float64frombits(s.playbackSpeed.Load())
	select {
	case st := <-s.bus.PlaybackState:
		speed = st.PlaybackSpeed
		s.playbackSpeed.Store(math.Float64bits(speed))
	default:
	}

	if !s.isPlaying.Load() {
		clear(output)
		return portaudio.Continue
	}

	bytesNeeded := len(output)
	n := s.ring.ReadFillSilence(output)
	samplesWritten := n / s.bytesPerSample

	volume := math.Float64frombits(s.volume.Load())
	applyVolume(output[:n], s.bitsPerSample, volume)

	if samplesWritten > 0 {
		s.frameIndex.Add(uint64(float64(samplesWritten) * speed))
	}

	channels := s.spec.Channels()
	frameIdx := s.frameIndex.Load()
	totalSeconds := float64(frameIdx) / float64(s.spec.SampleRate*channels)
	wholeSeconds := int64(totalSeconds)
	fractional := totalSeconds - float64(wholeSeconds)

	if s.timestampEmit.Load() {
		if wholeSeconds != s.lastEmittedSeconds.Load() {
			s.lastEmittedSeconds.Store(wholeSeconds)
			s.emitTimestamp(totalSeconds)
		} else if math.Abs(fractional-s.lastEmittedFractional) > 0.2 {
			s.lastEmittedFractional = fractional
			s.emitTimestamp(totalSeconds)
		}
	}

	s.dispatchVisualization(output[:n])

	if n < bytesNeeded {
		clear(output[n:])
	}

	return portaudio.Continue
}

func (s *Sink) emitTimestamp(seconds float64) {
	if s.onTimestamp != nil {
		s.onTimestamp(seconds)
	}
	controlbus.SendLatched(s.bus.TimestampFromSink, seconds)
}

// applyVolume scales integer PCM output in place with an exponential curve
// so perceived loudness falls off roughly linearly. Only 16-, 24- and 32-bit
// integer samples are scaled; there is no float-sample path, and any other
// bit depth is left unchanged.
func applyVolume(raw []byte, bitsPerSample int, volume float64) {
	if volume == 1.0 {
		return
	}
	curve := math.Pow(10, 2*volume-2)

	bytesPerSample := bitsPerSample / 8
	for off := 0; off+bytesPerSample <= len(raw); off += bytesPerSample {
		var v int32
		switch bitsPerSample {
		case 16:
			v = int32(int16(uint16(raw[off]) | uint16(raw[off+1])<<8))
		case 24:
			u := uint32(raw[off]) | uint32(raw[off+1])<<8 | uint32(raw[off+2])<<16
			if u&0x800000 != 0 {
				u |= 0xFF000000
			}
			v = int32(u)
		case 32:
			v = int32(uint32(raw[off]) | uint32(raw[off+1])<<8 | uint32(raw[off+2])<<16 | uint32(raw[off+3])<<24)
		default:
			continue
		}

		scaled := float64(v) * curve
		maxVal := float64(int64(1) << (bitsPerSample - 1))
		if scaled > maxVal-1 {
			scaled = maxVal - 1
		} else if scaled < -maxVal {
			scaled = -maxVal
		}
		v = int32(scaled)

		switch bitsPerSample {
		case 16:
			raw[off] = byte(v)
			raw[off+1] = byte(v >> 8)
		case 24:
			raw[off] = byte(v)
			raw[off+1] = byte(v >> 8)
			raw[off+2] = byte(v >> 16)
		case 32:
			raw[off] = byte(v)
			raw[off+1] = byte(v >> 8)
			raw[off+2] = byte(v >> 16)
			raw[off+3] = byte(v >> 24)
		}
	}
}

// dispatchVisualization accumulates just-played samples and, once a full
// callback period has been collected, enqueues them on the visualization
// dispatcher so the callback never blocks on the sink's Write.
func (s *Sink) dispatchVisualization(raw []byte) {
	bytesPerSample := s.bytesPerSample
	channels := s.spec.Channels()
	frames := len(raw) / (bytesPerSample * channels)

	s.visMu.Lock()
	for i := 0; i < frames && s.visBufPos < len(s.visBuf); i++ {
		off := i * channels * bytesPerSample
		s.visBuf[s.visBufPos] = decodeSampleFloat(raw[off:off+bytesPerSample], bytesPerSample)
		s.visBufPos++
	}
	full := s.visBufPos >= len(s.visBuf)
	var frame []float32
	if full {
		frame = make([]float32, len(s.visBuf))
		copy(frame, s.visBuf)
		s.visBufPos = 0
	}
	s.visMu.Unlock()

	if frame == nil {
		return
	}
	s.visDispatch.Enqueue(s.visualize.FromFloat(frame))
}

func decodeSampleFloat(b []byte, bytesPerSample int) float32 {
	var v int32
	switch bytesPerSample {
	case 2:
		v = int32(int16(uint16(b[0]) | uint16(b[1])<<8))
	case 3:
		u := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		if u&0x800000 != 0 {
			u |= 0xFF000000
		}
		v = int32(u)
	case 4:
		v = int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	}
	maxVal := float32(int64(1) << (bytesPerSample*8 - 1))
	return float32(v) / maxVal
}
