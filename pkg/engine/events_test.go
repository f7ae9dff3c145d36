package engine

import (
	"testing"

	internalengine "github.com/aurelia-audio/playbackengine/internal/engine"
)

func TestTranslateEventSongChange(t *testing.T) {
	ev := internalengine.Event{
		Kind: internalengine.EventSongChange,
		Song: internalengine.SongMetadata{Path: "track.flac", SampleRate: 44100, Channels: 2},
	}
	got := translateEvent(ev)
	if got.Name != "song_change" {
		t.Errorf("Name = %q, want song_change", got.Name)
	}
	if got.Song.Path != "track.flac" || got.Song.SampleRate != 44100 || got.Song.Channels != 2 {
		t.Errorf("Song = %+v, want {track.flac 44100 2}", got.Song)
	}
}

func TestTranslateEventTimestamp(t *testing.T) {
	got := translateEvent(internalengine.Event{Kind: internalengine.EventTimestamp, Seconds: 12.5})
	if got.Name != "timestamp" || got.Seconds != 12.5 {
		t.Errorf("got %+v, want timestamp at 12.5", got)
	}
}

func TestTranslateEventError(t *testing.T) {
	got := translateEvent(internalengine.Event{Kind: internalengine.EventError, Message: "boom"})
	if got.Name != "error" || got.Message != "boom" {
		t.Errorf("got %+v, want error \"boom\"", got)
	}
}
