package flac

import (
	"testing"
	"time"
)

func TestNewDecoder(t *testing.T) {
	decoder := NewDecoder()
	if decoder == nil {
		t.Fatal("NewDecoder returned nil")
	}
}

func TestDecoderSpecBeforeOpen(t *testing.T) {
	decoder := NewDecoder()

	spec := decoder.Spec()
	if spec.SampleRate != 0 || spec.Channels() != 2 {
		t.Errorf("expected zero-value spec before Open, got %+v", spec)
	}
	if decoder.MaxFramesPerPacket() != packetFrames {
		t.Errorf("MaxFramesPerPacket() = %d, want %d", decoder.MaxFramesPerPacket(), packetFrames)
	}
	if decoder.TrackID() != 0 {
		t.Errorf("TrackID() = %d, want 0", decoder.TrackID())
	}
}

func TestDecoderClose(t *testing.T) {
	decoder := NewDecoder()

	if err := decoder.Close(); err != nil {
		t.Errorf("Close on unopened decoder failed: %v", err)
	}
	if err := decoder.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestNextPacketWithoutOpen(t *testing.T) {
	decoder := NewDecoder()

	if _, err := decoder.NextPacket(); err == nil {
		t.Error("expected error calling NextPacket without Open")
	}
}

func TestSeekAccurateWithoutOpenReturnsError(t *testing.T) {
	decoder := NewDecoder()
	decoder.spec.SampleRate = 44100

	// SeekAccurate delegates to the underlying libFLAC decoder, which only
	// exists after Open succeeds against a real file; exercising the actual
	// seek requires a cgo-backed integration test with a FLAC fixture.
	if _, err := decoder.SeekAccurate(2 * time.Second); err == nil {
		t.Error("expected error calling SeekAccurate before Open")
	}
}
