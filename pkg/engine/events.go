package engine

import (
	internalengine "github.com/aurelia-audio/playbackengine/internal/engine"
)

// Event is the public, wire-friendly event shape. Name matches spec §6's
// event names exactly (song_change, timestamp, paused, playing, stopped,
// audio_device_changed, file_samples, waveform, error).
type Event struct {
	Name string

	Song       SongMetadata
	Seconds    float64
	DeviceName string
	NFrames    int64
	Peaks      []float32
	Done       bool
	Message    string
}

// SongMetadata accompanies a song_change event.
type SongMetadata struct {
	Path       string
	SampleRate int
	Channels   int
}

func translateEvent(ev internalengine.Event) Event {
	out := Event{
		Song:       SongMetadata{Path: ev.Song.Path, SampleRate: ev.Song.SampleRate, Channels: ev.Song.Channels},
		Seconds:    ev.Seconds,
		DeviceName: ev.DeviceName,
		NFrames:    ev.NFrames,
		Peaks:      ev.Peaks,
		Done:       ev.Done,
		Message:    ev.Message,
	}

	switch ev.Kind {
	case internalengine.EventSongChange:
		out.Name = "song_change"
	case internalengine.EventTimestamp:
		out.Name = "timestamp"
	case internalengine.EventPaused:
		out.Name = "paused"
	case internalengine.EventPlaying:
		out.Name = "playing"
	case internalengine.EventStopped:
		out.Name = "stopped"
	case internalengine.EventAudioDeviceChanged:
		out.Name = "audio_device_changed"
	case internalengine.EventFileSamples:
		out.Name = "file_samples"
	case internalengine.EventWaveform:
		out.Name = "waveform"
	case internalengine.EventError:
		out.Name = "error"
	default:
		out.Name = "unknown"
	}
	return out
}
