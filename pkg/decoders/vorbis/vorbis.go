package vorbis

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jfreymuth/oggvorbis"

	"github.com/aurelia-audio/playbackengine/pkg/types"
)

// packetFrames is the fixed frame count decoded per NextPacket call.
// oggvorbis.Reader.Read fills a flat float32 buffer across all channels, so
// a "packet" here is one fixed-size Read call's worth of frames.
const packetFrames = 4096

// Decoder wraps github.com/jfreymuth/oggvorbis as a types.PacketSource.
// Unlike the PCM decoders in this package family, oggvorbis.Reader decodes
// straight to float32, so no InterleavedToPlanarFloat32 conversion is
// needed — only de-interleaving.
type Decoder struct {
	file      *os.File
	reader    *oggvorbis.Reader
	spec      types.SignalSpec
	posFrames int64
	flat      []float32
}

// NewDecoder creates a new Ogg/Vorbis decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens an Ogg/Vorbis file for decoding.
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open vorbis file: %w", err)
	}

	reader, err := oggvorbis.NewReader(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read vorbis headers: %w", err)
	}

	d.file = file
	d.reader = reader
	d.spec = types.SignalSpec{
		SampleRate: reader.SampleRate(),
		Layout:     types.LayoutFromChannelCount(reader.Channels()),
	}
	d.flat = make([]float32, packetFrames*reader.Channels())

	return nil
}

// Close closes the Ogg/Vorbis file.
func (d *Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

func (d *Decoder) Spec() types.SignalSpec { return d.spec }

func (d *Decoder) MaxFramesPerPacket() int { return packetFrames }

func (d *Decoder) TrackID() int { return 0 }

func (d *Decoder) NFramesTotal() (int64, bool) {
	if d.reader == nil {
		return 0, false
	}
	length := d.reader.Length()
	if length <= 0 {
		return 0, false
	}
	return length, true
}

// SeekAccurate reports the target frame timestamp but does not reposition
// the reader: decoding continues from the current position, and the caller
// discards packets that end before the returned timestamp.
func (d *Decoder) SeekAccurate(target time.Duration) (int64, error) {
	return int64(target.Seconds() * float64(d.spec.SampleRate)), nil
}

// NextPacket decodes the next fixed-size chunk of frames.
func (d *Decoder) NextPacket() (*types.DecodedBuffer, error) {
	if d.reader == nil {
		return nil, fmt.Errorf("decoder not initialized")
	}

	n, err := d.reader.Read(d.flat)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	channels := d.spec.Channels()
	frames := n / channels
	planar := make([][]float32, channels)
	for c := range planar {
		planar[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			planar[c][i] = d.flat[i*channels+c]
		}
	}

	buf := &types.DecodedBuffer{
		Spec:    d.spec,
		Samples: planar,
		TS:      d.posFrames,
		Dur:     int64(frames),
	}
	d.posFrames += int64(frames)

	return buf, nil
}
