package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurelia-audio/playbackengine/pkg/engine"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"
)

var (
	playDeviceIdx    int
	playFramesBuffer int
	playSeekSeconds  float64
	playVolume       float64
	playVerbose      bool
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play <audio_file>",
	Short: "Play an audio file through the playback engine",
	Long: `Play an audio file using the full playback engine: Decoder Loop, Output
Sink and resampler, wired together the way a host application would drive
them.

Examples:
  # Play a FLAC file
  playbackengine play music.flac

  # Play an MP3 file from a specific device, starting at 30s
  playbackengine play -d 0 --seek 30 music.mp3

  # Lower volume, verbose logging
  playbackengine play --volume 0.5 -v music.wav

Supported Formats:
  MP3, FLAC, WAV, Ogg/Vorbis, Opus`,
	Args: cobra.ExactArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", 1, "Audio output device index")
	playCmd.Flags().IntVarP(&playFramesBuffer, "frames", "f", 512, "Audio frames per buffer")
	playCmd.Flags().Float64Var(&playSeekSeconds, "seek", 0, "Initial seek position in seconds")
	playCmd.Flags().Float64Var(&playVolume, "volume", 1.0, "Initial volume in [0, 1]")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func runPlay(cmd *cobra.Command, args []string) {
	fileName := args[0]

	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		slog.Error("File not found", "path", fileName)
		os.Exit(1)
	}

	slog.Info("Initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		slog.Error("Hint: Make sure PortAudio is installed on your system")
		os.Exit(1)
	}
	defer portaudio.Terminate()

	slog.Info("PortAudio initialized", "version", portaudio.GetVersion())

	eng, err := engine.New(engine.Config{
		DefaultDeviceIndex: playDeviceIdx,
		FramesPerBuffer:    playFramesBuffer,
	})
	if err != nil {
		slog.Error("Failed to create engine", "error", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	go eng.Run(stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Starting playback", "file", fileName, "seek", playSeekSeconds, "volume", playVolume)
	eng.StreamFile(fileName, playSeekSeconds, playVolume, "")

	for {
		select {
		case ev, ok := <-eng.Events():
			if !ok {
				slog.Info("Exiting")
				return
			}
			logPlaybackEvent(ev)
			if ev.Name == "stopped" {
				close(stop)
				slog.Info("Exiting")
				return
			}
		case sig := <-sigChan:
			slog.Info("Signal received, stopping playback", "signal", sig)
			close(stop)
			return
		}
	}
}

func logPlaybackEvent(ev engine.Event) {
	switch ev.Name {
	case "song_change":
		slog.Info("Song changed", "path", ev.Song.Path, "sample_rate", ev.Song.SampleRate, "channels", ev.Song.Channels)
	case "timestamp":
		slog.Debug("Timestamp", "seconds", fmt.Sprintf("%.2f", ev.Seconds))
	case "paused":
		slog.Info("Paused")
	case "playing":
		slog.Info("Playing")
	case "stopped":
		slog.Info("Stopped")
	case "audio_device_changed":
		slog.Info("Audio device changed", "device", ev.DeviceName)
	case "file_samples":
		slog.Info("File opened", "total_frames", ev.NFrames)
	case "error":
		slog.Warn("Playback error", "message", ev.Message)
	}
}
