package opus

import (
	"fmt"
	"io"
	"time"

	goopus "github.com/drgolem/go-opus/opus"

	"github.com/aurelia-audio/playbackengine/pkg/types"
)

// packetFrames is the fixed frame count decoded per NextPacket call, same
// convention as the sibling decoders in this package family.
const packetFrames = 4096

// Decoder wraps github.com/drgolem/go-opus as a types.PacketSource,
// following the same NewDecoder/Open/Close/GetFormat/DecodeSamples shape as
// the drgolem family's FLAC and mpg123 wrappers.
type Decoder struct {
	decoder   *goopus.OpusDecoder
	spec      types.SignalSpec
	bps       int
	posFrames int64
	raw       []byte
}

// NewDecoder creates a new Opus decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens and initializes an Opus file for decoding.
func (d *Decoder) Open(fileName string) error {
	decoder, err := goopus.NewOpusDecoder()
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Open(fileName); err != nil {
		decoder.Delete()
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	rate, channels, bps := decoder.GetFormat()

	d.decoder = decoder
	d.spec = types.SignalSpec{SampleRate: rate, Layout: types.LayoutFromChannelCount(channels)}
	d.bps = bps
	d.raw = make([]byte, packetFrames*channels*(bps/8))

	return nil
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
		Samples: types.InterleavedToPlanarFloat32(d.raw, d.spec.Channels(), d.bps, n),
		TS:      d.posFrames,
		Dur:     int64(n),
	}
	d.posFrames += int64(n)

	return buf, nil
}
