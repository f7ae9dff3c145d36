// Package engine is the playback engine's public facade: the small
// synchronous command surface and asynchronous event surface spec-level
// callers use, wiring the Decoder Loop (internal/engine), the Output Sink
// (internal/outputsink), the control bus (internal/controlbus), the peaks
// extractor (pkg/peaks) and the persisted settings store (pkg/config)
// behind one type.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aurelia-audio/playbackengine/internal/controlbus"
	internalengine "github.com/aurelia-audio/playbackengine/internal/engine"
	"github.com/aurelia-audio/playbackengine/pkg/config"
	"github.com/aurelia-audio/playbackengine/pkg/peaks"
	"github.com/aurelia-audio/playbackengine/pkg/types"
	"github.com/aurelia-audio/playbackengine/pkg/visualsink"
)

// Config configures a new Engine.
type Config struct {
	DefaultDeviceIndex int
	DefaultDeviceName  string
	FramesPerBuffer    int
	VisSink            visualsink.Sink
	ListDevices        func() ([]DeviceInfo, error)

	// ConfigDir is where pkg/config's settings.yaml lives. Empty disables
	// persisted settings entirely.
	ConfigDir string
}

// DeviceInfo names an available output device.
type DeviceInfo = internalengine.DeviceInfo

// Engine is the playback engine. Create with New, call Run once in its own
// goroutine, then drive it exclusively through its command methods.
type Engine struct {
	bus    *controlbus.Bus
	core   *internalengine.Engine
	events chan Event

	cfgStore *config.Store

	peaksMu     sync.Mutex
	peaksCancel map[string]context.CancelFunc
}

// New creates an Engine. Call Run to start the Decoder Loop.
func New(cfg Config) (*Engine, error) {
	bus := controlbus.New()

	core := internalengine.New(bus, internalengine.Config{
		DefaultDeviceIndex: cfg.DefaultDeviceIndex,
		DefaultDeviceName:  cfg.DefaultDeviceName,
		FramesPerBuffer:    cfg.FramesPerBuffer,
		VisSink:            cfg.VisSink,
		ListDevices:        cfg.ListDevices,
	})

	e := &Engine{
		bus:         bus,
		core:        core,
		events:      make(chan Event, 64),
		peaksCancel: make(map[string]context.CancelFunc),
	}

	if cfg.ConfigDir != "" {
		store, err := config.Load(cfg.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("engine: loading settings: %w", err)
		}
		e.cfgStore = store
	}

	go e.forwardCoreEvents()

	return e, nil
}

// forwardCoreEvents relays the Decoder Loop's internal events onto the
// facade's unified, wire-friendly event stream. GetPeaks publishes waveform
// events onto the same stream directly.
func (e *Engine) forwardCoreEvents() {
	for ev := range e.core.Events() {
		e.events <- translateEvent(ev)
	}
}

// Run drives the Decoder Loop until stop is closed. Call it in its own
// goroutine immediately after New.
func (e *Engine) Run(stop <-chan struct{}) {
	e.core.Run(stop)
}

// Events returns the engine's single outbound event stream: song_change,
// timestamp, paused/playing/stopped, audio_device_changed, file_samples,
// waveform and error, interleaved in emission order.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// StreamFile begins playback of path, replacing any current track
// non-gaplessly. outputDevice is optional; empty keeps the current device.
// If a persisted settings store is configured, outputDevice is empty and
// follow_system_output is false, the store's output_device setting is used.
func (e *Engine) StreamFile(path string, seekSeconds, volume float64, outputDevice string) {
	if outputDevice == "" && e.cfgStore != nil {
		if settings, err := e.cfgStore.Get(); err == nil && !settings.FollowSystemOutput {
			outputDevice = settings.OutputDevice
		}
	}
	e.bus.StreamFile <- controlbus.StreamFileMsg{
		Path:         path,
		SeekSeconds:  seekSeconds,
		Volume:       volume,
		OutputDevice: outputDevice,
	}
	controlbus.SendLatched(e.bus.Volume, controlbus.VolumeChangeMsg{Value: volume})
}

// EnqueueNext queues a track to start immediately after end-of-stream of
// the current track, gaplessly.
func (e *Engine) EnqueueNext(path string, seekSeconds, volume float64, outputDevice string) {
	e.bus.EnqueueNext <- controlbus.StreamFileMsg{
		Path:         path,
		SeekSeconds:  seekSeconds,
		Volume:       volume,
		OutputDevice: outputDevice,
	}
}

// LoopRegion enables or disables looping over [startSeconds, endSeconds] in
// the currently playing file.
func (e *Engine) LoopRegion(enabled bool, startSeconds, endSeconds float64) {
	e.bus.LoopRegion <- controlbus.LoopRegionMsg{
		Enabled:      enabled,
		StartSeconds: startSeconds,
		EndSeconds:   endSeconds,
	}
}

// ChangeAudioDevice reopens the output on another device, preserving
// position.
func (e *Engine) ChangeAudioDevice(name string) {
	e.bus.ChangeAudioDevice <- controlbus.ChangeAudioDeviceMsg{Name: name}
}

// ChangePlaybackSpeed changes resampling speed without reseeking. speed is
// clamped to [0.3, 3.0] by the Decoder Loop.
func (e *Engine) ChangePlaybackSpeed(speed float64) {
	e.bus.ChangePlaybackSpeed <- controlbus.ChangePlaybackSpeedMsg{Speed: speed}
}

// VolumeControl applies volume in the audio callback on its next tick.
func (e *Engine) VolumeControl(volume float64) {
	controlbus.SendLatched(e.bus.Volume, controlbus.VolumeChangeMsg{Value: volume})
}

// Pause toggles the pause atomic to Paused.
func (e *Engine) Pause() { e.bus.Pause.Pause() }

// Resume toggles the pause atomic to Active.
func (e *Engine) Resume() { e.bus.Pause.Resume() }

// GetDevices returns the available output device names, re-enumerating via
// the configured ListDevices hook.
func (e *Engine) GetDevices() ([]DeviceInfo, error) {
	return e.core.RefreshDevices()
}

// GetPlaybackStatus reports the current track and the sink's position
// within it, for external monitoring.
func (e *Engine) GetPlaybackStatus() types.PlaybackStatus {
	return e.core.GetPlaybackStatus()
}

// GetPeaks starts an async peaks extraction for path; progress and the
// final result both arrive as waveform events on Events(). Any outstanding
// extraction for the same path is cancelled first, per spec's "producers
// cancel all previous tokens when a new peaks request arrives for the same
// file".
func (e *Engine) GetPeaks(path string) {
	e.CancelPeaks(path)

	ctx, cancel := context.WithCancel(context.Background())
	e.peaksMu.Lock()
	e.peaksCancel[path] = cancel
	e.peaksMu.Unlock()

	progress := make(chan peaks.Progress, 8)
	go func() {
		defer close(progress)
		defer func() {
			e.peaksMu.Lock()
			delete(e.peaksCancel, path)
			e.peaksMu.Unlock()
		}()
		if err := peaks.Extract(ctx, path, progress); err != nil {
			slog.Warn("engine: peaks extraction ended", "path", path, "error", err)
		}
	}()

	go func() {
		for p := range progress {
			e.events <- Event{Name: "waveform", Peaks: p.Peaks, Done: p.Done}
		}
	}()
}

// CancelPeaks cancels an outstanding peaks extraction for path, if any.
func (e *Engine) CancelPeaks(path string) {
	e.peaksMu.Lock()
	cancel, ok := e.peaksCancel[path]
	delete(e.peaksCancel, path)
	e.peaksMu.Unlock()
	if ok {
		cancel()
	}
}
