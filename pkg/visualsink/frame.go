package visualsink

import (
	"encoding/binary"
	"fmt"
)

// frameHeaderSize is the wire size of a frame's fixed header, ahead of the
// variable-length payload.
const frameHeaderSize = 12

// FrameFormat describes the samples a visualization payload represents, so
// a remote receiver can interpret the otherwise-opaque bytes.
type FrameFormat struct {
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
}

// frame is one length-prefixed visualization payload queued for delivery.
//
// Wire layout (little-endian, 12-byte header):
//
//	SampleRate    4 bytes
//	Channels      1 byte
//	BitsPerSample 1 byte
//	SamplesCount  2 bytes
//	len(Payload)  4 bytes
//	Payload       variable
type frame struct {
	Format       FrameFormat
	SamplesCount uint16
	Payload      []byte
}

func (f *frame) marshal() []byte {
	buf := make([]byte, frameHeaderSize+len(f.Payload))

	binary.LittleEndian.PutUint32(buf[0:4], f.Format.SampleRate)
	buf[4] = f.Format.Channels
	buf[5] = f.Format.BitsPerSample
	binary.LittleEndian.PutUint16(buf[6:8], f.SamplesCount)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(f.Payload)))
	copy(buf[frameHeaderSize:], f.Payload)

	return buf
}

func (f *frame) unmarshal(data []byte) error {
	if len(data) < frameHeaderSize {
		return fmt.Errorf("visualsink: buffer too small: got %d bytes, need at least %d", len(data), frameHeaderSize)
	}

	f.Format.SampleRate = binary.LittleEndian.Uint32(data[0:4])
	f.Format.Channels = data[4]
	f.Format.BitsPerSample = data[5]
	f.SamplesCount = binary.LittleEndian.Uint16(data[6:8])
	payloadLen := int(binary.LittleEndian.Uint32(data[8:12]))

	if len(data) < frameHeaderSize+payloadLen {
		return fmt.Errorf("visualsink: buffer too small for payload: got %d bytes, need %d", len(data), frameHeaderSize+payloadLen)
	}

	f.Payload = make([]byte, payloadLen)
	copy(f.Payload, data[frameHeaderSize:frameHeaderSize+payloadLen])

	return nil
}
