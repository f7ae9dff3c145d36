package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playbackengine",
	Short: "Gapless audio playback engine with resampling and peaks extraction",
	Long: `playbackengine - a real-time audio playback engine built on a lock-free
SPSC ringbuffer between a decode thread and a PortAudio callback.

Features:
  - Lock-free SPSC ringbuffer with zero-copy audio processing
  - Decoder Loop / Output Sink producer-consumer architecture
  - Support for MP3, FLAC, WAV, Ogg/Vorbis and Opus
  - Gapless track transitions, loop regions, variable playback speed
  - Windowed-sinc resampling for device-rate adaptation
  - Offline RMS peaks extraction

Commands:
  - play: Play an audio file through the full engine
  - peaks: Extract an RMS waveform from an audio file
  - transform: Convert audio files to different sample rates and WAV format`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
