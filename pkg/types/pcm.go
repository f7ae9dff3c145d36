package types

import "encoding/binary"

// InterleavedToPlanarFloat32 converts a little-endian interleaved integer PCM
// buffer (as produced by the teacher-lineage decoders' DecodeSamples calls)
// into planar float32 samples in [-1, 1), the representation DecodedBuffer
// carries through the resampler and into the Output Sink.
func InterleavedToPlanarFloat32(raw []byte, channels, bitsPerSample, frames int) [][]float32 {
	bytesPerSample := bitsPerSample / 8
	planar := make([][]float32, channels)
	for c := range planar {
		planar[c] = make([]float32, frames)
	}

	maxVal := float32(int64(1) << (bitsPerSample - 1))

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * bytesPerSample
			if off+bytesPerSample > len(raw) {
				continue
			}
			var v int32
			switch bitsPerSample {
			case 8:
				v = int32(int8(raw[off]))
			case 16:
				v = int32(int16(binary.LittleEndian.Uint16(raw[off:])))
			case 24:
				u := uint32(raw[off]) | uint32(raw[off+1])<<8 | uint32(raw[off+2])<<16
				if u&0x800000 != 0 {
					u |= 0xFF000000
				}
				v = int32(u)
			case 32:
				v = int32(binary.LittleEndian.Uint32(raw[off:]))
			}
			planar[c][i] = float32(v) / maxVal
		}
	}
	return planar
}

// PlanarFloat32ToInterleavedInt writes planar float32 samples (clamped to
// [-1, 1]) into a little-endian interleaved integer buffer of the requested
// bit depth. Used by the Output Sink after fades have been applied, to
// produce the bytes written to the ring buffer; volume is applied later,
// to those bytes, in the audio device callback.
func PlanarFloat32ToInterleavedInt(planar [][]float32, bitsPerSample int, dst []byte) int {
	channels := len(planar)
	if channels == 0 {
		return 0
	}
	frames := len(planar[0])
	bytesPerSample := bitsPerSample / 8
	maxVal := float32(int64(1)<<(bitsPerSample-1)) - 1

	written := 0
	for i := 0; i < frames; i++ {
		off := i * channels * bytesPerSample
		if off+channels*bytesPerSample > len(dst) {
			break
		}
		for c := 0; c < channels; c++ {
			s := planar[c][i]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			v := int32(s * maxVal)
			o := off + c*bytesPerSample
			switch bitsPerSample {
			case 8:
				dst[o] = byte(v)
			case 16:
				binary.LittleEndian.PutUint16(dst[o:], uint16(int16(v)))
			case 24:
				dst[o] = byte(v)
				dst[o+1] = byte(v >> 8)
				dst[o+2] = byte(v >> 16)
			case 32:
				binary.LittleEndian.PutUint32(dst[o:], uint32(v))
			}
		}
		written = i + 1
	}
	return written
}

// SilenceByte is the zero-fill value for the signed interleaved PCM this
// engine writes to ring buffers and device callbacks: the mid-level of a
// signed representation is zero, unlike 8-bit unsigned formats.
const SilenceByte = 0
