package engine

import "time"

// TrackCursor is mutated only by the Decoder Loop goroutine.
type TrackCursor struct {
	Path          string
	SeekTSFrames  int64
	CurrentTrack  int
	NFramesTotal  int64
	NFramesKnown  bool
}

// LoopRegion mirrors the engine's loop_region control message state.
type LoopRegion struct {
	Enabled      bool
	StartSeconds float64
	EndSeconds   float64
}

// TransitionState exists only between the moment a gapless next track is
// accepted and the moment its first packet has been fully handed to the
// sink.
type TransitionState struct {
	InProgress      bool
	StartedAt       time.Time
	PrevPath        string
	PrevSeekTS      int64
	ResamplerDelay  int64
}
