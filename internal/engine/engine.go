// Package engine implements the Decoder Loop: the long-running task that
// alternates between waiting for a path and playing one, generalizing
// internal/fileplayer's single decode-until-EOF producer loop into the full
// state machine the playback engine needs — seeks, loop regions, device
// swaps, speed changes, and gapless transitions.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aurelia-audio/playbackengine/internal/controlbus"
	"github.com/aurelia-audio/playbackengine/internal/outputsink"
	"github.com/aurelia-audio/playbackengine/pkg/decoders"
	"github.com/aurelia-audio/playbackengine/pkg/ringbuffer"
	"github.com/aurelia-audio/playbackengine/pkg/types"
	"github.com/aurelia-audio/playbackengine/pkg/visualsink"
)

const (
	minPlaybackSpeed = 0.3
	maxPlaybackSpeed = 3.0

	defaultBitsPerSample   = 16
	defaultFramesPerBuffer = 512
)

// DeviceInfo names an available output device.
type DeviceInfo struct {
	Index int
	Name  string
}

// Config configures a new Engine.
type Config struct {
	DefaultDeviceIndex int
	DefaultDeviceName  string
	FramesPerBuffer    int
	VisSink            visualsink.Sink
	// ListDevices enumerates available output devices; injected so the
	// engine does not hard-code a particular PortAudio host API call.
	ListDevices func() ([]DeviceInfo, error)
}

// Engine is the Decoder Loop plus the Output Sink it drives.
type Engine struct {
	bus    *controlbus.Bus
	events chan Event
	cfg    Config

	sink *outputsink.Sink

	cursor     TrackCursor
	loop       LoopRegion
	transition TransitionState
	speed      float64
	deviceName string

	cachedDevices []DeviceInfo
}

// New creates an Engine. Call Run in its own goroutine to start the
// Decoder Loop.
func New(bus *controlbus.Bus, cfg Config) *Engine {
	if cfg.FramesPerBuffer == 0 {
		cfg.FramesPerBuffer = defaultFramesPerBuffer
	}
	return &Engine{
		bus:        bus,
		events:     make(chan Event, 64),
		cfg:        cfg,
		speed:      1.0,
		deviceName: cfg.DefaultDeviceName,
	}
}

// Events returns the engine's outbound event stream.
func (e *Engine) Events() <-chan Event { return e.events }

// GetPlaybackStatus implements types.PlaybackMonitor, reporting the current
// track and the sink's position within it. Returns a zero-value status with
// an empty FileName while the Decoder Loop has no sink open.
func (e *Engine) GetPlaybackStatus() types.PlaybackStatus {
	if e.sink == nil {
		return types.PlaybackStatus{}
	}
	status := e.sink.GetPlaybackStatus()
	status.FileName = e.cursor.Path
	return status
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		slog.Warn("engine: event channel full, dropping event", "kind", ev.Kind)
	}
}

// Run drives the Decoder Loop until stop is closed.
func (e *Engine) Run(stop <-chan struct{}) {
	var req *controlbus.StreamFileMsg

	for {
		if req == nil {
			req = e.waitForRequest(stop)
			if req == nil {
				return
			}
		}
		req = e.playTrack(req, stop)
	}
}

// waitForRequest blocks in the Waiting phase until a StreamFile arrives (or
// a LoopRegion/ChangeAudioDevice replays the last path), or stop closes.
func (e *Engine) waitForRequest(stop <-chan struct{}) *controlbus.StreamFileMsg {
	for {
		select {
		case <-stop:
			return nil

		case msg := <-e.bus.StreamFile:
			return &msg

		case msg := <-e.bus.LoopRegion:
			e.loop = LoopRegion{Enabled: msg.Enabled, StartSeconds: msg.StartSeconds, EndSeconds: msg.EndSeconds}
			if e.cursor.Path != "" {
				return &controlbus.StreamFileMsg{Path: e.cursor.Path, SeekSeconds: msg.StartSeconds}
			}

		case msg := <-e.bus.ChangeAudioDevice:
			e.deviceName = msg.Name
			if e.cursor.Path != "" {
				return &controlbus.StreamFileMsg{Path: e.cursor.Path}
			}

		case msg := <-e.bus.ChangePlaybackSpeed:
			e.speed = clampSpeed(msg.Speed)
		}
	}
}

func clampSpeed(speed float64) float64 {
	if speed < minPlaybackSpeed {
		return minPlaybackSpeed
	}
	if speed > maxPlaybackSpeed {
		return maxPlaybackSpeed
	}
	return speed
}

// playTrack runs the Opening and Playing phases for req, including the
// per-packet inner loop, and returns the next request to play immediately
// (a reset, a device swap, a loop replay, or a gapless hand-off), or nil to
// return to the Waiting phase.
func (e *Engine) playTrack(req *controlbus.StreamFileMsg, stop <-chan struct{}) *controlbus.StreamFileMsg {
	source, err := decoders.NewPacketSource(req.Path)
	if err != nil {
		e.emit(Event{Kind: EventError, Message: err.Error()})
		e.transition = TransitionState{}
		return nil
	}
	defer source.Close()

	spec := source.Spec()
	seekTS := int64(0)
	if req.SeekSeconds > 0 {
		ts, err := source.SeekAccurate(time.Duration(req.SeekSeconds * float64(time.Second)))
		if err != nil {
			seekTS = 0
		} else {
			seekTS = ts
		}
	}

	e.cursor = TrackCursor{Path: req.Path, SeekTSFrames: seekTS}
	if nFrames, known := source.NFramesTotal(); known {
		e.cursor.NFramesTotal = nFrames
		e.cursor.NFramesKnown = true
		e.emit(Event{Kind: EventFileSamples, NFrames: nFrames})
	}

	deviceName := req.OutputDevice
	if deviceName == "" {
		deviceName = e.deviceName
	}

	if !e.transition.InProgress {
		if _, err := e.RefreshDevices(); err != nil {
			slog.Warn("engine: device enumeration failed, keeping cached list", "error", err)
		}
	}

	needsReset := e.sink == nil || !e.sink.Matches(spec, deviceName, source.MaxFramesPerPacket())
	wasPaused := e.bus.Pause.IsPaused()

	if needsReset {
		if e.transition.InProgress && e.sink != nil {
			e.drainSink()
		}
		if err := e.resetSink(spec, deviceName, source.MaxFramesPerPacket()); err != nil {
			e.emit(Event{Kind: EventError, Message: err.Error()})
			e.transition = TransitionState{}
			return nil
		}
		controlbus.SendLatched(e.bus.SampleOffsetReset, uint64(seekTS*int64(spec.Channels())))
		e.deviceName = deviceName
		e.emit(Event{Kind: EventAudioDeviceChanged, DeviceName: deviceName})

		if wasPaused {
			// The new sink always opens in a playing state; restore the
			// pause the caller had in effect before the device swap.
			e.sink.Pause()
		}
	}

	songChangeHeld := e.transition.InProgress && !needsReset
	if e.transition.InProgress && needsReset {
		// Spec mismatch mid-transition: gapless degrades to a plain reset,
		// so the new track's song_change fires immediately like any other
		// track open.
		e.transition = TransitionState{}
	}
	if !songChangeHeld {
		e.emit(Event{Kind: EventSongChange, Song: SongMetadata{Path: req.Path, SampleRate: spec.SampleRate, Channels: spec.Channels()}})
	} else {
		e.scheduleTransitionSongChange(req, spec, seekTS)
	}

	e.sink.UpdateResampler(spec, source.MaxFramesPerPacket(), e.speed, needsReset)

	isTransition := e.transition.InProgress
	isReset := false
	announced := false
	var nextReq *controlbus.StreamFileMsg

packetLoop:
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if next := e.drainControlDuringPlayback(source, &isReset, &isTransition); next != nil {
			nextReq = next
			break packetLoop
		}
		if isReset {
			break packetLoop
		}

		if e.bus.Pause.IsPaused() {
			e.emit(Event{Kind: EventPaused})
			e.sink.Pause()
			e.bus.Pause.WaitWhilePaused()
			e.sink.Resume()
			e.emit(Event{Kind: EventPlaying})
			continue
		}

		if !announced {
			e.emit(Event{Kind: EventPlaying})
			announced = true
		}

		buf, err := source.NextPacket()
		if err != nil {
			if errors.Is(err, types.ErrDecodeTransient) {
				slog.Warn("engine: transient decode error", "path", req.Path, "error", err)
				continue
			}

			if next, isEOFStop := e.handleEndOfStream(err); next != nil {
				nextReq = next
				break packetLoop
			} else if isEOFStop {
				return nil
			}
			break packetLoop
		}

		if e.loop.Enabled {
			endFrame := int64(e.loop.EndSeconds * float64(spec.SampleRate))
			if buf.TS >= endFrame {
				startFrame, _ := source.SeekAccurate(time.Duration(e.loop.StartSeconds * float64(time.Second)))
				e.cursor.SeekTSFrames = startFrame
				controlbus.SendLatched(e.bus.SampleOffsetReset, uint64(startFrame*int64(spec.Channels())))
				continue
			}
		}

		if buf.EndTS() < e.cursor.SeekTSFrames {
			continue
		}

		rampUp, rampDown := 0, 0
		if !isTransition {
			if buf.TS < buf.Dur {
				rampUp = int(buf.Dur)
			}
			if e.cursor.NFramesKnown && buf.EndTS() >= e.cursor.NFramesTotal {
				rampDown = int(buf.Dur)
			}
		}

		if err := e.sink.Write(buf, rampUp, rampDown); err != nil {
			slog.Warn("engine: sink write failed", "error", err)
		}

		select {
		case ts := <-e.bus.TimestampFromSink:
			_ = ts // informational only, per spec §5 ordering guarantees
		default:
		}
	}

	e.transition = TransitionState{}

	return nextReq
}

// scheduleTransitionSongChange holds back the new track's song_change event
// (and the SampleOffsetReset that must accompany it) until the previous
// track's tail has had roughly BUFFER_SECONDS + resampler_delay to drain,
// scaled by the playback speed. The wait is not shortened when the previous
// track's playhead was already inside that final window.
func (e *Engine) scheduleTransitionSongChange(req *controlbus.StreamFileMsg, spec types.SignalSpec, seekTS int64) {
	resamplerDelaySeconds := float64(e.transition.ResamplerDelay) / float64(spec.SampleRate)
	wait := time.Duration((float64(ringbuffer.BufferSeconds) + resamplerDelaySeconds) * float64(time.Second) / e.speed)

	go func() {
		time.Sleep(wait)
		e.emit(Event{Kind: EventSongChange, Song: SongMetadata{Path: req.Path, SampleRate: spec.SampleRate, Channels: spec.Channels()}})
		controlbus.SendLatched(e.bus.SampleOffsetReset, uint64(seekTS*int64(spec.Channels())))
	}()
}

// drainControlDuringPlayback processes the bounded, non-blocking control
// drain spec §4.2 step 3 describes. It returns a non-nil request when the
// caller should break the packet loop and re-enter Playing immediately.
func (e *Engine) drainControlDuringPlayback(source types.PacketSource, isReset, isTransition *bool) *controlbus.StreamFileMsg {
	select {
	case msg := <-e.bus.StreamFile:
		*isReset = true
		*isTransition = false
		e.sink.Flush()
		return &msg
	default:
	}

	select {
	case msg := <-e.bus.LoopRegion:
		e.loop = LoopRegion{Enabled: msg.Enabled, StartSeconds: msg.StartSeconds, EndSeconds: msg.EndSeconds}
		if msg.Enabled {
			startFrame, _ := source.SeekAccurate(time.Duration(msg.StartSeconds * float64(time.Second)))
			e.cursor.SeekTSFrames = startFrame
			e.sink.Flush()
			*isReset = true
			return &controlbus.StreamFileMsg{Path: e.cursor.Path, SeekSeconds: msg.StartSeconds}
		}
	default:
	}

	select {
	case msg := <-e.bus.ChangeAudioDevice:
		e.sink.Flush()
		e.sink.Pause()
		*isReset = true
		return &controlbus.StreamFileMsg{Path: e.cursor.Path, OutputDevice: msg.Name}
	default:
	}

	select {
	case msg := <-e.bus.ChangePlaybackSpeed:
		e.speed = clampSpeed(msg.Speed)
		e.sink.UpdateResampler(source.Spec(), source.MaxFramesPerPacket(), e.speed, false)
	default:
	}

	return nil
}

// handleEndOfStream implements the gapless hand-off or the final drain+stop
// sequence at end-of-stream (or any other terminal decode error, which is
// treated identically per spec §7's "I/O errors... end the current track
// as if end-of-stream").
func (e *Engine) handleEndOfStream(err error) (next *controlbus.StreamFileMsg, stopped bool) {
	if !errors.Is(err, io.EOF) {
		slog.Warn("engine: track ended on error", "error", err)
	}

	select {
	case msg := <-e.bus.EnqueueNext:
		e.transition = TransitionState{
			InProgress:     true,
			StartedAt:      time.Now(),
			PrevPath:       e.cursor.Path,
			PrevSeekTS:     e.cursor.SeekTSFrames,
			ResamplerDelay: e.sink.ResamplerDelay(),
		}
		return &controlbus.StreamFileMsg{Path: msg.Path, SeekSeconds: msg.SeekSeconds, Volume: msg.Volume}, false
	default:
	}

	for e.sink.HasRemainingSamples() {
		time.Sleep(outputsink.DrainPollInterval)
	}
	e.sink.Pause()
	e.emit(Event{Kind: EventStopped})
	return nil, true
}

func (e *Engine) drainSink() {
	for e.sink.HasRemainingSamples() {
		time.Sleep(outputsink.DrainPollInterval)
	}
}

func (e *Engine) resetSink(spec types.SignalSpec, deviceName string, maxFramesPerPacket int) error {
	if e.sink != nil {
		e.sink.MarkStale()
		e.sink.Close()
	}

	deviceIndex := e.cfg.DefaultDeviceIndex
	for _, d := range e.cachedDevices {
		if d.Name == deviceName {
			deviceIndex = d.Index
			break
		}
	}

	sink := outputsink.New(e.bus, outputsink.Config{
		DeviceIndex:     deviceIndex,
		DeviceName:      deviceName,
		Spec:            spec,
		BitsPerSample:   defaultBitsPerSample,
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		MaxFramesPacket: maxFramesPerPacket,
		VisSink:         e.cfg.VisSink,
	})
	sink.SetTimestampHandler(func(seconds float64) {
		e.emit(Event{Kind: EventTimestamp, Seconds: seconds})
	})

	if err := sink.Open(); err != nil {
		return fmt.Errorf("opening output sink: %w", err)
	}
	e.sink = sink
	return nil
}

// RefreshDevices re-enumerates output devices. The Decoder Loop calls this
// only on a manual track open, never mid-gapless-transition, to avoid an
// audible glitch from a live device re-enumeration (original_source/player.rs's
// cached_devices field).
func (e *Engine) RefreshDevices() ([]DeviceInfo, error) {
	if e.cfg.ListDevices == nil {
		return e.cachedDevices, nil
	}
	devices, err := e.cfg.ListDevices()
	if err != nil {
		return nil, err
	}
	e.cachedDevices = devices
	return devices, nil
}
