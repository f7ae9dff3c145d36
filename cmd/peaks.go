package cmd

import (
	"log/slog"
	"os"

	"github.com/aurelia-audio/playbackengine/pkg/engine"

	"github.com/spf13/cobra"
)

var peaksVerbose bool

// peaksCmd represents the peaks command
var peaksCmd = &cobra.Command{
	Use:   "peaks <audio_file>",
	Short: "Extract an RMS waveform from an audio file",
	Long: `Scan an audio file offline and print the progress of its downsampled RMS
waveform as it is produced, one peak per fixed window of samples.

Examples:
  # Extract peaks from a FLAC file
  playbackengine peaks music.flac`,
	Args: cobra.ExactArgs(1),
	Run:  runPeaks,
}

func init() {
	rootCmd.AddCommand(peaksCmd)

	peaksCmd.Flags().BoolVarP(&peaksVerbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func runPeaks(cmd *cobra.Command, args []string) {
	fileName := args[0]

	logLevel := slog.LevelInfo
	if peaksVerbose {
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

	eng, err := engine.New(engine.Config{})
	if err != nil {
		slog.Error("Failed to create engine", "error", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	go eng.Run(stop)
	defer close(stop)

	slog.Info("Extracting peaks", "file", fileName)
	eng.GetPeaks(fileName)

	for ev := range eng.Events() {
		if ev.Name != "waveform" {
			continue
		}
		slog.Info("Peaks progress", "count", len(ev.Peaks), "done", ev.Done)
		if ev.Done {
			return
		}
	}
}
