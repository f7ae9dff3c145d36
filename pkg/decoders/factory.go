package decoders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aurelia-audio/playbackengine/pkg/decoders/flac"
	"github.com/aurelia-audio/playbackengine/pkg/decoders/mp3"
	"github.com/aurelia-audio/playbackengine/pkg/decoders/opus"
	"github.com/aurelia-audio/playbackengine/pkg/decoders/vorbis"
	"github.com/aurelia-audio/playbackengine/pkg/decoders/wav"
	"github.com/aurelia-audio/playbackengine/pkg/types"
)

// NewPacketSource creates and opens the packet source appropriate for
// fileName's extension. Supports .mp3, .flac/.fla, .wav, .ogg and .opus.
func NewPacketSource(fileName string) (types.PacketSource, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	var source types.PacketSource

	switch ext {
	case ".mp3":
		source = mp3.NewDecoder()
	case ".flac", ".fla":
		source = flac.NewDecoder()
	case ".wav":
		source = wav.NewDecoder()
	case ".ogg":
		source = vorbis.NewDecoder()
	case ".opus":
		source = opus.NewDecoder()
	default:
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac, .fla, .wav, .ogg, .opus)", types.ErrUnsupportedFormat, ext)
	}

	if err := source.Open(fileName); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fileName, err)
	}

	return source, nil
}
