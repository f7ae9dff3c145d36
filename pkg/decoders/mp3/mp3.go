package mp3

import (
	"fmt"
	"io"
	"time"

	"github.com/drgolem/go-mpg123/mpg123"

	"github.com/aurelia-audio/playbackengine/pkg/types"
)

// packetFrames is the fixed frame count decoded per NextPacket call.
// mpg123's DecodeSamples call has no notion of MPEG frame boundaries once
// wrapped at this level, so a "packet" is one fixed-size decode chunk.
const packetFrames = 4096

// Decoder wraps mpg123.Decoder as a types.PacketSource.
type Decoder struct {
	decoder   *mpg123.Decoder
	spec      types.SignalSpec
	encoding  int
	posFrames int64
	raw       []byte
}

// NewDecoder creates a new MP3 decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens and initializes an MP3 file for decoding.
func (d *Decoder) Open(fileName string) error {
	decoder, err := mpg123.NewDecoder("")
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Open(fileName); err != nil {
		decoder.Delete()
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	rate, channels, encoding := decoder.GetFormat()

	d.decoder = decoder
	d.spec = types.SignalSpec{SampleRate: rate, Layout: types.LayoutFromChannelCount(channels)}
	d.encoding = encoding
	d.raw = make([]byte, packetFrames*channels*bitsPerSample(encoding)/8)

	return nil
}

// bitsPerSample maps mpg123's encoding constant to a bit depth. mpg123 is
// configured for 16-bit output by the decoder library's own default, which
// is the only encoding this wrapper has validated against real files.
func bitsPerSample(_ int) int {
	return 16
}

// Close closes the decoder and releases resources.
func (d *Decoder) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

func (d *Decoder) Spec() types.SignalSpec { return d.spec }

func (d *Decoder) MaxFramesPerPacket() int { return packetFrames }

func (d *Decoder) TrackID() int { return 0 }

func (d *Decoder) NFramesTotal() (int64, bool) { return 0, false }

// SeekAccurate reports the target frame timestamp but does not reposition
// the decoder: decoding continues from the current position, and the caller
// discards packets that end before the returned timestamp.
func (d *Decoder) SeekAccurate(target time.Duration) (int64, error) {
	return int64(target.Seconds() * float64(d.spec.SampleRate)), nil
}

// NextPacket decodes the next fixed-size chunk of frames.
func (d *Decoder) NextPacket() (*types.DecodedBuffer, error) {
	if d.decoder == nil {
		return nil, fmt.Errorf("decoder not initialized")
	}

	n, err := d.decoder.DecodeSamples(packetFrames, d.raw)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	buf := &types.DecodedBuffer{
		Spec:    d.spec,
		Samples: types.InterleavedToPlanarFloat32(d.raw, d.spec.Channels(), bitsPerSample(d.encoding), n),
		TS:      d.posFrames,
		Dur:     int64(n),
	}
	d.posFrames += int64(n)

	return buf, nil
}
