package visualsink

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu    sync.Mutex
	got   [][]byte
	ready chan struct{}
}

func (r *recordingSink) Write(frame []byte) error {
	r.mu.Lock()
	r.got = append(r.got, frame)
	n := len(r.got)
	r.mu.Unlock()
	if n == 1 {
		close(r.ready)
	}
	return nil
}

func TestDispatcherDeliversEnqueuedFrame(t *testing.T) {
	sink := &recordingSink{ready: make(chan struct{})}
	d := NewDispatcher(sink, FrameFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 8})
	defer d.Close()

	d.Enqueue([]byte{1, 2, 3})

	select {
	case <-sink.ready:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not deliver frame within 1s")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(sink.got))
	}

	var decoded frame
	if err := decoded.unmarshal(sink.got[0]); err != nil {
		t.Fatalf("unmarshal() error = %v", err)
	}
	if decoded.Format.SampleRate != 44100 || decoded.Format.Channels != 2 {
		t.Errorf("Format = %+v, want {44100 2 8}", decoded.Format)
	}
	if string(decoded.Payload) != "\x01\x02\x03" {
		t.Errorf("Payload = %v, want [1 2 3]", decoded.Payload)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sink := &recordingSink{ready: make(chan struct{})}
	d := NewDispatcher(sink, FrameFormat{})
	defer d.Close()

	for i := 0; i < queueCapacity*4; i++ {
		d.Enqueue([]byte{byte(i)})
	}
	// Must not panic or block regardless of how many frames exceed capacity.
}

func TestFrameMarshalUnmarshalRoundTrip(t *testing.T) {
	original := frame{
		Format:       FrameFormat{SampleRate: 48000, Channels: 1, BitsPerSample: 8},
		SamplesCount: 4,
		Payload:      []byte{0x01, 0x02, 0x03, 0x04},
	}

	data := original.marshal()
	if len(data) != frameHeaderSize+len(original.Payload) {
		t.Fatalf("marshal size = %d, want %d", len(data), frameHeaderSize+len(original.Payload))
	}

	var decoded frame
	if err := decoded.unmarshal(data); err != nil {
		t.Fatalf("unmarshal() error = %v", err)
	}
	if decoded.Format != original.Format {
		t.Errorf("Format = %+v, want %+v", decoded.Format, original.Format)
	}
	if decoded.SamplesCount != original.SamplesCount {
		t.Errorf("SamplesCount = %d, want %d", decoded.SamplesCount, original.SamplesCount)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("Payload = %v, want %v", decoded.Payload, original.Payload)
	}
}

func TestFrameUnmarshalShortBufferErrors(t *testing.T) {
	var f frame
	if err := f.unmarshal([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for buffer shorter than the header")
	}

	// Header claims more payload bytes than the buffer actually carries.
	short := make([]byte, frameHeaderSize)
	short[8] = 0xE8
	short[9] = 0x03 // payload length field = 1000, no payload bytes follow
	if err := f.unmarshal(short); err == nil {
		t.Error("expected error when payload length exceeds buffer")
	}
}

func TestFrameQueuePushPop(t *testing.T) {
	q := newFrameQueue(4)

	for i := 0; i < 4; i++ {
		if !q.push(frame{SamplesCount: uint16(i)}) {
			t.Fatalf("push %d: expected success", i)
		}
	}
	if q.push(frame{}) {
		t.Error("push into full queue: expected failure")
	}

	for i := 0; i < 4; i++ {
		f, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d: expected a frame", i)
		}
		if f.SamplesCount != uint16(i) {
			t.Errorf("pop %d: SamplesCount = %d, want %d", i, f.SamplesCount, i)
		}
	}
	if _, ok := q.pop(); ok {
		t.Error("pop from empty queue: expected failure")
	}
}
