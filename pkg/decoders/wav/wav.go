package wav

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/youpy/go-wav"

	"github.com/aurelia-audio/playbackengine/pkg/types"
)

// packetFrames is the fixed frame count decoded per NextPacket call.
// go-wav reads sample-by-sample (one frame at a time), so this is just how
// many of those single-frame reads get batched into one packet.
const packetFrames = 4096

// Decoder wraps go-wav as a types.PacketSource.
type Decoder struct {
	file      *os.File
	reader    *wav.Reader
	spec      types.SignalSpec
	bps       int
	posFrames int64
}

// NewDecoder creates a new WAV decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens a WAV file for decoding.
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open WAV file: %w", err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read WAV format: %w", err)
	}

	if format.AudioFormat != wav.AudioFormatPCM {
		file.Close()
		return fmt.Errorf("unsupported WAV format: %d (only PCM supported)", format.AudioFormat)
	}

	d.file = file
	d.reader = reader
	d.spec = types.SignalSpec{
		SampleRate: int(format.SampleRate),
		Layout:     types.LayoutFromChannelCount(int(format.NumChannels)),
	}
	d.bps = int(format.BitsPerSample)

	return nil
}

// Close closes the WAV file.
func (d *Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

func (d *Decoder) Spec() types.SignalSpec { return d.spec }

func (d *Decoder) MaxFramesPerPacket() int { return packetFrames }

func (d *Decoder) TrackID() int { return 0 }

func (d *Decoder) NFramesTotal() (int64, bool) { return 0, false }

// SeekAccurate reports the target frame timestamp but does not reposition
// the reader: decoding continues from the current position, and the caller
// discards packets that end before the returned timestamp.
func (d *Decoder) SeekAccurate(target time.Duration) (int64, error) {
	return int64(target.Seconds() * float64(d.spec.SampleRate)), nil
}

// NextPacket decodes the next fixed-size chunk of frames, reading one frame
// at a time the way go-wav's ReadSamples(1) API requires.
func (d *Decoder) NextPacket() (*types.DecodedBuffer, error) {
	if d.reader == nil {
		return nil, fmt.Errorf("decoder not initialized")
	}

	channels := d.spec.Channels()
	bytesPerSample := d.bps / 8
	raw := make([]byte, packetFrames*channels*bytesPerSample)

	frames := 0
	for frames < packetFrames {
		samplesData, err := d.reader.ReadSamples(1)
		if err != nil || len(samplesData) == 0 {
			if frames == 0 {
				if err == nil {
					err = io.EOF
				}
				return nil, err
			}
			break
		}

		off := frames * channels * bytesPerSample
		for ch := 0; ch < channels && ch < len(samplesData[0].Values); ch++ {
			value := samplesData[0].Values[ch]
			o := off + ch*bytesPerSample
			switch d.bps {
			case 8:
				raw[o] = byte(value)
			case 16:
				raw[o] = byte(value)
				raw[o+1] = byte(value >> 8)
			case 24:
				raw[o] = byte(value)
				raw[o+1] = byte(value >> 8)
				raw[o+2] = byte(value >> 16)
			case 32:
				raw[o] = byte(value)
				raw[o+1] = byte(value >> 8)
				raw[o+2] = byte(value >> 16)
				raw[o+3] = byte(value >> 24)
			}
		}
		frames++
	}

	buf := &types.DecodedBuffer{
		Spec:    d.spec,
		Samples: types.InterleavedToPlanarFloat32(raw, channels, d.bps, frames),
		TS:      d.posFrames,
		Dur:     int64(frames),
	}
	d.posFrames += int64(frames)

	return buf, nil
}
